// Critic is a terminal front end for AI code review.
//
// It reviews files, directories, stdin, or git changes with a selectable
// backend, keeps an encrypted history of past reviews, and supports a chat
// about the latest result. The serve command exposes the same operations
// over HTTP and a websocket event stream.
//
// Usage:
//
//	critic review ./src                # review a directory
//	critic review --staged             # review files in the index
//	critic review --stdin --lang go    # review piped content
//	critic chat                        # chat about the latest review
//	critic history list                # browse stored reviews
//	critic models doctor --all         # check every backend
//	critic serve                       # run the local API
//
// Backends are gemini (default), claude, chatgpt, ollama, bedrock, and
// vertex. Select one with --model or CRITIC_MODEL.
package main
