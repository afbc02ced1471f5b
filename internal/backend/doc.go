// Package backend defines the capability contract between critic and the AI
// services that review code, and provides the concrete backends.
//
// Every LLM backend is a [Service] wrapping a provider adapter: Gemini via
// google.golang.org/genai, Claude via the Anthropic SDK, ChatGPT via the
// OpenAI SDK, Ollama over its OpenAI-compatible HTTP endpoint, and Bedrock via
// the AWS SDK. Services share prompt construction, rate limiting, retries
// with exponential backoff, and a single repair pass for malformed review
// responses. Declared but unbuilt backends are [Unimplemented].
//
// Failures are returned as *[Error] carrying a [Kind] so callers can tell
// configuration problems from transient ones. Use [Hint] for user guidance.
package backend
