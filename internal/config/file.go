package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File is the optional on-disk configuration at <home>/config.yaml. Flags
// and env take precedence; the file fills in whatever the caller left
// unset.
type File struct {
	Addr     string `yaml:"addr"`
	APIKey   string `yaml:"api_key"`
	DBDriver string `yaml:"db_driver"`
	DBURL    string `yaml:"db_url"`
	Dev      bool   `yaml:"dev"`
	Metrics  bool   `yaml:"metrics"`
}

// LoadFile reads <home>/config.yaml. A missing file is not an error; it
// returns the zero File.
func LoadFile(home string) (File, error) {
	var f File
	b, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, err
	}
	return f, nil
}

// Merge fills zero-valued fields of dst from src and returns dst.
func Merge(dst, src File) File {
	if dst.Addr == "" {
		dst.Addr = src.Addr
	}
	if dst.APIKey == "" {
		dst.APIKey = src.APIKey
	}
	if dst.DBDriver == "" {
		dst.DBDriver = src.DBDriver
	}
	if dst.DBURL == "" {
		dst.DBURL = src.DBURL
	}
	if !dst.Dev {
		dst.Dev = src.Dev
	}
	if !dst.Metrics {
		dst.Metrics = src.Metrics
	}
	return dst
}
