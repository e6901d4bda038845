// Package config loads runtime settings from a TOML file with MOTOR_*
// environment overrides.
package config
