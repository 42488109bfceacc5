// Package config loads optional YAML defaults for the CLI. Flags given on
// the command line override anything set here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"xml2mask/contracts"
)

// Config mirrors the subset of run options that make sense as per-user or
// per-project defaults.
type Config struct {
	Output struct {
		// Directory receives the generated files; empty keeps the
		// input file's directory.
		Directory string `yaml:"directory"`

		// Format is the mask/histology encoding: tif, png or webp.
		Format string `yaml:"format"`

		// FillValue is the foreground value of the mask (1-255).
		FillValue int `yaml:"fillValue"`
	} `yaml:"output"`

	Mask struct {
		// SplitLayers writes one mask per annotation layer instead of
		// a single combined mask.
		SplitLayers bool `yaml:"splitLayers"`

		SaveCSV      bool `yaml:"saveCSV"`
		SavePolygons bool `yaml:"savePolygons"`
	} `yaml:"mask"`

	// Resolution is the default pyramid level selection.
	Resolution string `yaml:"resolution"`

	Verbose int `yaml:"verbose"`
}

// Default returns the built-in defaults, matching the historical tool.
func Default() *Config {
	cfg := &Config{}
	cfg.Output.Format = string(contracts.FormatTIFF)
	cfg.Output.FillValue = 255
	cfg.Mask.SaveCSV = true
	cfg.Mask.SavePolygons = true
	cfg.Resolution = contracts.ResolutionAuto
	cfg.Verbose = 1
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults; a named but unreadable file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Output.FillValue < 1 || c.Output.FillValue > 255 {
		return fmt.Errorf("output.fillValue must be between 1 and 255, got %d", c.Output.FillValue)
	}
	switch contracts.OutputFormat(c.Output.Format) {
	case contracts.FormatTIFF, contracts.FormatPNG, contracts.FormatWebP:
	default:
		return fmt.Errorf("output.format must be tif, png or webp, got %q", c.Output.Format)
	}
	return nil
}

// Apply copies the config defaults into a run option set.
func (c *Config) Apply(opts *contracts.Options) {
	opts.OutDir = c.Output.Directory
	opts.Format = contracts.OutputFormat(c.Output.Format)
	opts.FillValue = uint8(c.Output.FillValue)
	opts.SplitLayers = c.Mask.SplitLayers
	opts.SaveCSV = c.Mask.SaveCSV
	opts.SavePolygons = c.Mask.SavePolygons
	opts.Resolution = c.Resolution
	opts.Verbose = c.Verbose
}
