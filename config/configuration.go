// Package config implements BiReUS's ambient, YAML-backed application
// configuration, mirroring the teacher's configuration package shape
// (a Configuration struct with Log/HTTP/Server sections and a Parse
// function), scaled down to what the server and client CLIs need.
package config

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// Configuration is BiReUS's top-level application configuration, intended
// to be provided by a YAML file and optionally overridden by environment
// variables.
type Configuration struct {
	// Log supports setting various parameters related to the logging
	// subsystem.
	Log Log `yaml:"log"`

	// HTTP contains configuration parameters for the webhook endpoint's
	// listener.
	HTTP HTTP `yaml:"http"`

	// Server configures the repository manager's storage root.
	Server Server `yaml:"server"`
}

// Log represents the logging subsystem's configuration.
type Log struct {
	// Level is the granularity at which operations are logged: debug,
	// info, warn, error.
	Level string `yaml:"level,omitempty"`
}

// HTTP contains configuration parameters for the webhook listener.
type HTTP struct {
	// Addr is the address the webhook HTTP server listens on, e.g. ":5050".
	Addr string `yaml:"addr"`
}

// Server configures the repository manager.
type Server struct {
	// RootDir is the parent directory containing every ServerRepository.
	RootDir string `yaml:"rootdir"`
}

// Parse reads and validates a Configuration from rd, applying the
// BIREUS_LOG_LEVEL environment variable as an override for Log.Level (the
// teacher's deprecated Loglevel field has no equivalent here — there is no
// legacy field to migrate).
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	var c Configuration
	if err := yaml.Unmarshal(in, &c); err != nil {
		return nil, err
	}

	if level := os.Getenv("BIREUS_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Server.RootDir == "" {
		return nil, errors.New("config: server.rootdir is required")
	}

	return &c, nil
}
