package slab

import (
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Automove aggressiveness levels (spec.md §6, "slab_automove").
const (
	AutomoveOff = iota
	AutomoveGentle
	AutomoveAggressive
)

// Config enumerates the tunables spec.md §6 lists. It is constructible as
// a literal (as the teacher's memsys.MMSA{...} is) or loaded from YAML via
// LoadConfig, since a long-running deployment of this allocator wants a
// config file rather than only struct literals.
type Config struct {
	LimitBytes   int64   `yaml:"limit_bytes"`
	GrowthFactor float64 `yaml:"growth_factor"`
	Prealloc     bool    `yaml:"prealloc"`
	MaxItemBytes int     `yaml:"max_item_bytes"` // == PAGE_BYTES
	ChunkAlign   int     `yaml:"chunk_align"`

	BaseItemOverhead  int `yaml:"base_item_overhead"`
	InitialChunkExtra int `yaml:"initial_chunk_extra"`

	SlabReassign bool `yaml:"slab_reassign"`
	SlabAutomove int  `yaml:"slab_automove"`
	BulkCheck    int  `yaml:"bulk_check"`

	DecisionSecondsShort time.Duration `yaml:"decision_seconds_short"`
	DecisionSecondsLong  time.Duration `yaml:"decision_seconds_long"`
}

// DefaultConfig mirrors memcached's historical defaults: 1MiB pages, 1.25
// growth factor, 8-byte chunk alignment, bulk_check of 1.
func DefaultConfig() Config {
	return Config{
		GrowthFactor:         1.25,
		MaxItemBytes:         1 * 1024 * 1024,
		ChunkAlign:           8,
		BaseItemOverhead:     48,
		InitialChunkExtra:    0,
		SlabReassign:         true,
		SlabAutomove:         AutomoveGentle,
		BulkCheck:            1,
		DecisionSecondsShort: 1 * time.Second,
		DecisionSecondsLong:  10 * time.Second,
	}
}

// LoadConfig reads a Config from a YAML file, starting from DefaultConfig
// so an incomplete file still yields sane tunables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides tunables from the environment variables spec.md §6
// enumerates: MEMCACHED_SLAB_BULK_CHECK overrides BulkCheck.
func (cfg *Config) applyEnv() {
	if v := os.Getenv("MEMCACHED_SLAB_BULK_CHECK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BulkCheck = n
		}
	}
}

// initialMallocOverride reads T_MEMD_INITIAL_MALLOC, used by test harnesses
// to seed malloced_bytes at init time (spec.md §6).
func initialMallocOverride() (int64, bool) {
	v := os.Getenv("T_MEMD_INITIAL_MALLOC")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
