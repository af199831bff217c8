// Package config holds the parameters of a simulated memory hierarchy.
package config

import (
	"fmt"
	"math/bits"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/memsim/timing/cache"
)

// Config holds the sizes and latencies of one simulated system.
type Config struct {
	// FreqGHz is the clock frequency of every ticking component.
	// Default: 1 GHz.
	FreqGHz float64 `json:"freq_ghz"`

	// PendingQueueSize is the number of in-flight accesses a CPU controller
	// can track. Default: 16.
	PendingQueueSize int `json:"pending_queue_size"`

	// ICacheBufferSize is the number of instruction lines a CPU controller
	// remembers after a fetch completes. Default: 4.
	ICacheBufferSize int `json:"icache_buffer_size"`

	// L1ILineSize and L1DLineSize are the line sizes, in bytes, used for
	// collision detection. Both must be powers of two. Default: 64.
	L1ILineSize int `json:"l1i_line_size"`
	L1DLineSize int `json:"l1d_line_size"`

	// RequestPoolSize is the capacity of the shared request arena.
	// Default: 1024.
	RequestPoolSize int `json:"request_pool_size"`

	// MessagePoolSize is the number of interconnect messages.
	// Default: 64.
	MessagePoolSize int `json:"message_pool_size"`

	// GCInterval is the number of cycles between arena garbage collections.
	// Zero disables collection. Default: 1000.
	GCInterval uint64 `json:"gc_interval"`

	// L1I and L1D describe the caches behind each controller.
	L1I cache.Config `json:"l1i"`
	L1D cache.Config `json:"l1d"`

	// IssueWidth is the number of trace accesses a core may issue per
	// cycle. Default: 2.
	IssueWidth int `json:"issue_width"`

	// ROBSize bounds the data accesses a core keeps outstanding.
	// Default: 32.
	ROBSize int `json:"rob_size"`
}

// DefaultConfig returns a Config with M2-like default values.
func DefaultConfig() *Config {
	return &Config{
		FreqGHz:          1,
		PendingQueueSize: 16,
		ICacheBufferSize: 4,
		L1ILineSize:      64,
		L1DLineSize:      64,
		RequestPoolSize:  1024,
		MessagePoolSize:  64,
		GCInterval:       1000,
		L1I:              cache.DefaultL1IConfig(),
		L1D:              cache.DefaultL1DConfig(),
		IssueWidth:       2,
		ROBSize:          32,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := sonnet.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := sonnet.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func validateCache(name string, c cache.Config) error {
	if c.BlockSize <= 0 || !isPowerOfTwo(c.BlockSize) {
		return fmt.Errorf("%s.block_size must be a power of two", name)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("%s.associativity must be > 0", name)
	}
	if c.Size <= 0 || c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("%s.size must be a multiple of associativity * block_size", name)
	}
	if c.MissLatency == 0 {
		return fmt.Errorf("%s.miss_latency must be > 0", name)
	}
	return nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.FreqGHz <= 0 {
		return fmt.Errorf("freq_ghz must be > 0")
	}
	if c.PendingQueueSize <= 0 {
		return fmt.Errorf("pending_queue_size must be > 0")
	}
	if c.ICacheBufferSize < 0 {
		return fmt.Errorf("icache_buffer_size must be >= 0")
	}
	if !isPowerOfTwo(c.L1ILineSize) {
		return fmt.Errorf("l1i_line_size must be a power of two")
	}
	if !isPowerOfTwo(c.L1DLineSize) {
		return fmt.Errorf("l1d_line_size must be a power of two")
	}
	if need := c.MinRequestPoolSize(1); c.RequestPoolSize < need {
		return fmt.Errorf("request_pool_size must be >= %d", need)
	}
	if c.MessagePoolSize < 4 {
		return fmt.Errorf("message_pool_size must be >= 4")
	}
	if err := validateCache("l1i", c.L1I); err != nil {
		return err
	}
	if err := validateCache("l1d", c.L1D); err != nil {
		return err
	}
	if c.IssueWidth <= 0 {
		return fmt.Errorf("issue_width must be > 0")
	}
	if c.ROBSize <= 0 {
		return fmt.Errorf("rob_size must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// MinRequestPoolSize returns the smallest request arena that can serve
// numCores cores: every pending queue full, one more issue cycle on every
// core, and one eviction notice.
func (c *Config) MinRequestPoolSize(numCores int) int {
	return numCores*(c.PendingQueueSize+c.IssueWidth) + 1
}

// ICacheLineBits returns log2 of the instruction line size.
func (c *Config) ICacheLineBits() uint {
	return uint(bits.TrailingZeros(uint(c.L1ILineSize)))
}

// DCacheLineBits returns log2 of the data line size.
func (c *Config) DCacheLineBits() uint {
	return uint(bits.TrailingZeros(uint(c.L1DLineSize)))
}

// envOverrides maps MEMSIM_* variables to the integer fields they set.
func (c *Config) envOverrides() map[string]*int {
	return map[string]*int{
		"MEMSIM_PENDING_QUEUE_SIZE": &c.PendingQueueSize,
		"MEMSIM_ICACHE_BUFFER_SIZE": &c.ICacheBufferSize,
		"MEMSIM_L1I_LINE_SIZE":      &c.L1ILineSize,
		"MEMSIM_L1D_LINE_SIZE":      &c.L1DLineSize,
		"MEMSIM_REQUEST_POOL_SIZE":  &c.RequestPoolSize,
		"MEMSIM_MESSAGE_POOL_SIZE":  &c.MessagePoolSize,
		"MEMSIM_ISSUE_WIDTH":        &c.IssueWidth,
		"MEMSIM_ROB_SIZE":           &c.ROBSize,
	}
}

// ApplyEnv overrides fields from MEMSIM_* environment variables. A .env file
// in the working directory is loaded first if present; variables already set
// in the environment win.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	for name, field := range c.envOverrides() {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}

		*field = n
	}

	if v, ok := os.LookupEnv("MEMSIM_FREQ_GHZ"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("failed to parse MEMSIM_FREQ_GHZ: %w", err)
		}
		c.FreqGHz = f
	}

	if v, ok := os.LookupEnv("MEMSIM_GC_INTERVAL"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse MEMSIM_GC_INTERVAL: %w", err)
		}
		c.GCInterval = n
	}

	return nil
}
