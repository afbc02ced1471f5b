// Package config loads and merges critic configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (CRITIC_FORMAT, CRITIC_FAIL_ON, OLLAMA_HOST, etc.)
//  3. Config file ($XDG_CONFIG_HOME/critic/config.json)
//  4. Built-in defaults
//
// Layering is done with viper: every default is registered as a viper key so
// that nested settings such as history.enabled can be overridden from any
// source, including explicit false values in the file.
//
// The active backend is deliberately absent: it is chosen per invocation and
// never persisted. Use [Load] to obtain a merged [Config], [Save] to write the
// config file, and [SetField] to update a single key.
package config
