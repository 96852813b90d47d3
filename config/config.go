// Package config holds the kkvd daemon settings. They come from command line
// flags, environment variables and an optional YAML file, in that order of
// precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	yaml "gopkg.in/yaml.v2"

	"kkv/fridge"
	"kkv/store"
)

const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"
)

var DefaultAddress = filepath.Join(os.TempDir(), "kkvd.sock")

type Config struct {
	Network  string `yaml:"network"`
	Address  string `yaml:"address"`
	Backend  string `yaml:"backend"`
	Shards   int    `yaml:"shards"`
	MaxBytes string `yaml:"maxBytes"` // Human readable size, e.g. "64MiB"
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`
}

func Default() Config {
	return Config{
		Network:  NetworkUnix,
		Address:  DefaultAddress,
		Backend:  string(store.Memory),
		Shards:   fridge.DefaultShards,
		DataDir:  os.TempDir(),
		LogLevel: "info",
	}
}

// Parse reads a YAML configuration. Missing keys are left empty.
func Parse(r io.Reader) (*Config, error) {
	var c Config
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("can't read the config file as YAML: %w", err)
	}
	return &c, nil
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open the config file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Network != "" {
		c.Network = source.Network
	}
	if source.Address != "" {
		c.Address = source.Address
	}
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Shards != 0 {
		c.Shards = source.Shards
	}
	if source.MaxBytes != "" {
		c.MaxBytes = source.MaxBytes
	}
	if source.DataDir != "" {
		c.DataDir = source.DataDir
	}
	if source.LogLevel != "" {
		c.LogLevel = source.LogLevel
	}
}

// CheckAndSetDefaults validates c and either returns a copy of c with
// default settings applied or returns an error due to an invalid
// configuration
func (c *Config) CheckAndSetDefaults() (Config, error) {
	checked := Default()
	checked.Merge(c)

	if checked.Network != NetworkUnix && checked.Network != NetworkTCP {
		return Config{}, fmt.Errorf("invalid network %q, allowed values: %q, %q", checked.Network, NetworkUnix, NetworkTCP)
	}
	if _, err := store.ParseType(checked.Backend); err != nil {
		return Config{}, err
	}
	if checked.Shards < 1 {
		return Config{}, fmt.Errorf("shard count must be positive, got %d", checked.Shards)
	}
	if _, err := checked.maxBytes(); err != nil {
		return Config{}, err
	}
	switch checked.LogLevel {
	case "debug", "info", "error":
	default:
		return Config{}, fmt.Errorf(`invalid log level %q, allowed values: "debug", "info", "error"`, checked.LogLevel)
	}
	return checked, nil
}

func (c *Config) maxBytes() (int64, error) {
	if c.MaxBytes == "" {
		return 0, nil
	}
	size, err := humanize.ParseBytes(c.MaxBytes)
	if err != nil {
		return 0, fmt.Errorf("can't parse max bytes %q: %w", c.MaxBytes, err)
	}
	if size > 1<<62 {
		return 0, fmt.Errorf("max bytes %q is too large", c.MaxBytes)
	}
	return int64(size), nil
}

// Fridge returns the store settings of a checked configuration
func (c *Config) Fridge() (fridge.Config, error) {
	maxBytes, err := c.maxBytes()
	if err != nil {
		return fridge.Config{}, err
	}
	return fridge.Config{
		Backend:  store.Type(c.Backend),
		Shards:   c.Shards,
		MaxBytes: maxBytes,
		Dir:      c.DataDir,
	}, nil
}
