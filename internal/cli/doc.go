// Package cli wires together the Cobra command tree for the critic binary.
//
// It defines the root command and all subcommands (review, chat, history,
// detect, models, config, hook, serve, version), binds flags, reads
// configuration, builds the review session, and returns deterministic exit
// codes for CI gating.
package cli
