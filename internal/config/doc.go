// Package config loads and watches peek's TOML configuration.
//
// Configuration is resolved in layers: built-in defaults, then the
// config file, then PEEK_* environment variables. A running session
// can opt into live reload, which re-reads the file on change and
// notifies subscribers.
package config
