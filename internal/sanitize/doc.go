// Package sanitize cleans user-supplied text before it is sent to a backend
// or rendered.
//
// Text strips ASCII control characters (keeping tab, newline, and carriage
// return) and truncates to a rune budget. It is applied to every chat message
// and to the names of pasted buffers.
//
// Secrets and Content scrub credentials from file contents with regex
// heuristics covering API keys, JWTs, private key blocks, AWS access keys,
// bearer tokens, and provider-specific tokens. Files whose paths match a
// redaction glob have their whole content replaced.
package sanitize
