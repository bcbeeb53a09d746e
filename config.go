package xsdgen

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultRuntime is the import path of the package generated code uses.
const DefaultRuntime = "github.com/agentflare-ai/go-xsdgen/xsdrt"

// LenientCategories are the unsupported constructs that can be skipped
// with a warning instead of failing the compilation.
var LenientCategories = []string{
	"identity-constraint",
	"notation",
	"redefine",
	"override",
	"assert",
	"openContent",
	"alternative",
	"nested-all",
	"group-in-all",
}

// Config controls a compilation.
type Config struct {
	// Package is the name of the generated Go package.
	Package string `yaml:"package"`
	// Runtime is the import path of the xsdrt package.
	Runtime string `yaml:"runtime"`
	// Parallelism bounds the number of documents read at once.
	Parallelism int `yaml:"parallelism"`
	// Lenient lists the unsupported construct categories to skip.
	Lenient []string `yaml:"lenient"`
	// StrictRestrictions turns unverifiable restricted content into an
	// error.
	StrictRestrictions bool `yaml:"strict_restrictions"`
	// Prefixes maps namespace URIs to Go identifier prefixes.
	Prefixes map[string]string `yaml:"prefixes"`
	// Names overrides the Go name of a declaration, keyed by {ns}local.
	Names map[string]string `yaml:"names"`
	// Exclude removes inputs matching these patterns after globbing.
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Package:     "schema",
		Runtime:     DefaultRuntime,
		Parallelism: 4,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML configuration over the defaults. Unknown
// keys are errors.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if !token.IsIdentifier(c.Package) {
		return fmt.Errorf("invalid package name %q", c.Package)
	}
	if c.Runtime == "" {
		return fmt.Errorf("runtime import path is empty")
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	for _, category := range c.Lenient {
		if !slices.Contains(LenientCategories, category) {
			return fmt.Errorf("unknown lenient category %q", category)
		}
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	for key, name := range c.Names {
		if !token.IsIdentifier(name) {
			return fmt.Errorf("names: %s: invalid Go identifier %q", key, name)
		}
	}
	return nil
}

// Excluded reports whether path matches an exclude pattern.
func (c *Config) Excluded(path string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
	}
	return false
}

func (c *Config) lenientSet() map[string]bool {
	set := make(map[string]bool, len(c.Lenient))
	for _, category := range c.Lenient {
		set[category] = true
	}
	return set
}
