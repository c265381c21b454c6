package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kolkov/tawk"
)

// fileSettings is the layout of a -settings YAML file. Every field is
// optional; command line flags override what the file sets.
type fileSettings struct {
	FS  string `yaml:"fs,omitempty"`
	RS  string `yaml:"rs,omitempty"`
	OFS string `yaml:"ofs,omitempty"`
	ORS string `yaml:"ors,omitempty"`

	// Variables are assigned before BEGIN, like -v.
	Variables map[string]string `yaml:"variables,omitempty"`

	SortedArrays bool  `yaml:"sorted_arrays,omitempty"`
	NoInput      bool  `yaml:"no_input,omitempty"`
	POSIXRegex   *bool `yaml:"posix_regex,omitempty"`

	// Extensions lists bundled extensions to enable. Setting it implies
	// enable_extensions.
	EnableExtensions bool     `yaml:"enable_extensions,omitempty"`
	Extensions       []string `yaml:"extensions,omitempty"`

	Generator  string `yaml:"generator,omitempty"`
	OutputDir  string `yaml:"output_dir,omitempty"`
	ScriptName string `yaml:"script_name,omitempty"`

	Verbose bool `yaml:"verbose,omitempty"`
}

func loadSettings(path string) (*fileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return parseSettings(data, path)
}

// parseSettings decodes settings content. The path is used only for error
// messages.
func parseSettings(data []byte, path string) (*fileSettings, error) {
	var s fileSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if len(s.Extensions) > 0 {
		s.EnableExtensions = true
	}
	return &s, nil
}

// apply copies the file values into config.
func (s *fileSettings) apply(config *tawk.Config) {
	config.FS = s.FS
	config.RS = s.RS
	config.OFS = s.OFS
	config.ORS = s.ORS
	if len(s.Variables) > 0 {
		config.Variables = make(map[string]string, len(s.Variables))
		for k, v := range s.Variables {
			config.Variables[k] = v
		}
	}
	config.SortedArrays = s.SortedArrays
	config.NoInput = s.NoInput
	config.POSIXRegex = s.POSIXRegex
	config.EnableExtensions = s.EnableExtensions
	config.Extensions = s.Extensions
	config.Generator = s.Generator
	config.OutputDir = s.OutputDir
	config.ScriptName = s.ScriptName
}
