// Package config loads and validates the service configuration.
//
// Values come from built-in defaults, an optional config.yaml, a .env file and
// environment variables prefixed with DECKGEN_ (for example DECKGEN_DATABASE_URL
// or DECKGEN_GENERATION_AWAIT_TIMEOUT), with later sources taking precedence.
package config
