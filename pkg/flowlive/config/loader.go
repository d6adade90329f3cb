package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a settings document encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file extension: %q", ext)
	}
}

// Parse decodes data in the given format. An empty document yields an
// empty Config.
func Parse(data []byte, format Format) (Config, error) {
	var m map[string]any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &m)
	case FormatJSON:
		if len(strings.TrimSpace(string(data))) > 0 {
			err = json.Unmarshal(data, &m)
		}
	default:
		return Config{}, fmt.Errorf("unknown config format %q", format)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", format, err)
	}
	return New(m), nil
}

// FromYAML parses a YAML document.
func FromYAML(data []byte) (Config, error) { return Parse(data, FormatYAML) }

// FromJSON parses a JSON document.
func FromJSON(data []byte) (Config, error) { return Parse(data, FormatJSON) }

// FromFile reads path and parses it according to its extension.
func FromFile(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, format)
}

// EnvOverrides maps environment variables to the settings keys they
// replace.
var EnvOverrides = map[string]string{
	"FLOWLIVE_SERVER_URL": "server_url",
	"FLOWLIVE_FLOW_ID":    "flow_id",
	"FLOWLIVE_HISTORY_DB": "history.db",
}

// Overlay returns a copy of c with every variable in EnvOverrides that
// lookup finds set to a non-empty value. Pass os.LookupEnv for the process
// environment.
func (c Config) Overlay(lookup func(string) (string, bool)) Config {
	out := maps.Clone(c.data)
	if out == nil {
		out = make(map[string]any)
	}
	for env, key := range EnvOverrides {
		if v, ok := lookup(env); ok && v != "" {
			out[key] = v
		}
	}
	return New(out)
}
