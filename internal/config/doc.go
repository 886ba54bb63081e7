// Package config handles configuration loading, parsing, and validation
// from a .env file, an optional YAML config file and FUNDWATCH_ prefixed
// environment variables. It provides type-safe access to the settings of
// the store, the report generator and the run itself.
package config
