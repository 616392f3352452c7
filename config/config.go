// Package config holds the tunables of an engine instance.  A Config is
// loaded from YAML and any field left unset takes its default.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/alecthomas/units"
	"github.com/brimdata/zframe/pkg/logger"
	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTempDir         = "cache:///zframe-tmp"
	DefaultBlockSize       = 64 * units.KiB
	DefaultReadCacheBlocks = 256
	DefaultObjectCache     = 128
	DefaultNumPartitions   = 8

	maxJoinBufferCells = 50_000_000
	// bytesPerCell is a rough in-memory footprint of one buffered cell.
	bytesPerCell = 64
)

type Config struct {
	Parallelism int           `yaml:"parallelism"`
	TempDir     string        `yaml:"temp_dir"`
	SArray      SArrayConfig  `yaml:"sarray"`
	Storage     StorageConfig `yaml:"storage"`
	Join        JoinConfig    `yaml:"join"`
	Graph       GraphConfig   `yaml:"graph"`
	Log         logger.Config `yaml:"log"`
}

type SArrayConfig struct {
	// BlockSize is the uncompressed size at which a segment block is cut.
	BlockSize ByteSize `yaml:"block_size"`
	// ReadCacheBlocks bounds the decoded blocks kept per process.
	ReadCacheBlocks int `yaml:"read_cache_blocks"`
}

type StorageConfig struct {
	// ObjectCache is the number of remote objects kept in memory.  Zero
	// disables the cache.
	ObjectCache *int `yaml:"object_cache"`
}

type JoinConfig struct {
	MaxBufferCells int64 `yaml:"max_buffer_cells"`
}

type GraphConfig struct {
	NumPartitions int `yaml:"num_partitions"`
}

// ByteSize is a byte count written in YAML as, e.g., "64KiB" or "4MB".
type ByteSize units.Base2Bytes

func (b ByteSize) String() string {
	return units.Base2Bytes(b).String()
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := units.ParseStrictBytes(string(text))
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("negative byte size: %s", text)
	}
	*b = ByteSize(n)
	return nil
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	c := &Config{}
	c.fill()
	return c
}

// DefaultMaxBufferCells is min(50M, TotalMemory/(4*64)).
func DefaultMaxBufferCells() int64 {
	cells := int64(memory.TotalMemory() / (4 * bytesPerCell))
	if cells <= 0 || cells > maxJoinBufferCells {
		return maxJoinBufferCells
	}
	return cells
}

func (c *Config) fill() {
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	if c.TempDir == "" {
		c.TempDir = DefaultTempDir
	}
	if c.SArray.BlockSize <= 0 {
		c.SArray.BlockSize = ByteSize(DefaultBlockSize)
	}
	if c.SArray.ReadCacheBlocks <= 0 {
		c.SArray.ReadCacheBlocks = DefaultReadCacheBlocks
	}
	if c.Storage.ObjectCache == nil {
		n := DefaultObjectCache
		c.Storage.ObjectCache = &n
	}
	if c.Join.MaxBufferCells <= 0 {
		c.Join.MaxBufferCells = DefaultMaxBufferCells()
	}
	if c.Graph.NumPartitions <= 0 {
		c.Graph.NumPartitions = DefaultNumPartitions
	}
	if c.Log.Path == "" {
		c.Log = logger.DefaultConfig()
	}
}

// Parse decodes YAML and fills defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.fill()
	return &c, nil
}

// Load reads the YAML file at path.  An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
