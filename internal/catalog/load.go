package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog document.
type File struct {
	Metrics        []Item `yaml:"metrics" json:"metrics"`
	Dimensions     []Item `yaml:"dimensions" json:"dimensions"`
	TimeDimensions []Item `yaml:"time_dimensions" json:"time_dimensions"`
	TimeWindows    []Item `yaml:"time_windows" json:"time_windows"`
}

func (f File) validate() error {
	if len(f.Metrics) == 0 {
		return fmt.Errorf("catalog: missing required section: metrics")
	}
	if len(f.Dimensions) == 0 {
		return fmt.Errorf("catalog: missing required section: dimensions")
	}
	if len(f.TimeDimensions) == 0 {
		return fmt.Errorf("catalog: missing required section: time_dimensions")
	}
	return nil
}

// Load reads and indexes a catalog YAML file. Any failure here is fatal at
// process start; a request never sees a half-loaded catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	c, err := New(file)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// Text renders the catalog vocabulary back to YAML. The extractor embeds it
// in the LLM prompt as opaque context.
func (c *Catalog) Text() (string, error) {
	data, err := yaml.Marshal(c.file)
	if err != nil {
		return "", fmt.Errorf("catalog: marshal: %w", err)
	}
	return string(data), nil
}
