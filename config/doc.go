// Package config loads node configuration from the environment, an
// optional .env file, and an optional YAML file that overrides both.
package config
