package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileDefaults carries option defaults read from a YAML file. A value only
// takes effect for options the command line left untouched.
type FileDefaults struct {
	UserAgent string   `yaml:"user_agent"`
	Referer   string   `yaml:"referer"`
	Interval  string   `yaml:"interval"`
	Timeout   string   `yaml:"timeout"`
	Port      uint     `yaml:"port"`
	OKCodes   []int    `yaml:"ok_codes"`
	Headers   []string `yaml:"headers"`
	LogLevel  string   `yaml:"log_level"`
}

func LoadDefaults(path string) (FileDefaults, error) {
	var defaults FileDefaults
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, err
	}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return defaults, fmt.Errorf("parsing %s: %w", path, err)
	}
	return defaults, nil
}

// applyDefaults copies file values into args for every flag the user did
// not set. changed reports whether a flag was given on the command line.
func applyDefaults(args *Args, defaults FileDefaults, changed func(string) bool) error {
	if defaults.UserAgent != "" && !changed("user-agent") {
		args.UserAgent = defaults.UserAgent
	}
	if defaults.Referer != "" && !changed("referer") {
		args.Referer = defaults.Referer
	}
	if defaults.Interval != "" && !changed("interval") {
		interval, err := time.ParseDuration(defaults.Interval)
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		args.Interval = interval
	}
	if defaults.Timeout != "" && !changed("timeout") {
		timeout, err := time.ParseDuration(defaults.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		args.Timeout = timeout
	}
	if defaults.Port != 0 && !changed("port") {
		args.Port = defaults.Port
	}
	if len(defaults.OKCodes) > 0 && !changed("ok-codes") {
		args.OKCodes = defaults.OKCodes
	}
	if len(defaults.Headers) > 0 && !changed("header") {
		args.Headers = defaults.Headers
	}
	if defaults.LogLevel != "" && !changed("log-level") {
		args.LogLevel = defaults.LogLevel
	}
	return nil
}
