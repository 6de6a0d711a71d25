package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// config is the shape of pscriptvm.yaml, read from the current directory
// (or a path given via --config) if present. Every field has a sane
// default so a missing file is never an error.
type config struct {
	StackSize         int  `yaml:"stackSize"`
	Debug             bool `yaml:"debug"`
	RegisterStdModule bool `yaml:"registerStdModule"`
}

func defaultConfig() *config {
	return &config{
		StackSize:         0,
		Debug:             false,
		RegisterStdModule: true,
	}
}

// loadConfig reads path if it exists, overlaying its fields onto the
// defaults. A missing file is not an error - pscriptvm runs fine unconfigured.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
