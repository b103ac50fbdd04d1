// Package config loads retrofx settings from code defaults, an optional YAML
// file, an optional .env file and RETROFX_* environment variables.
package config
