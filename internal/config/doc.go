// Package config loads mcpagent settings from YAML, .env files and the
// environment.
package config
