// Package file provides file-based implementations of driven port interfaces.
//
// ConfigStore reads ~/.classmate/config.toml, layers a .env file and
// CLASSMATE_* environment variables over it, and validates the result.
package file
