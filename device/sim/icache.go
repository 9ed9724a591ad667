package sim

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/mem"
)

// CacheConfig holds instruction cache parameters.
type CacheConfig struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles, including the fetch from memory
	MissLatency uint64
}

// DefaultCacheConfig returns the QPU instruction cache configuration:
// 4KB, 4-way, 64B lines.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     64,
		HitLatency:    1,
		MissLatency:   20,
	}
}

// CacheStats holds instruction cache statistics.
type CacheStats struct {
	Fetches uint64
	Hits    uint64
	Misses  uint64
}

// icache is a read-only instruction cache over the device storage.
type icache struct {
	config    CacheConfig
	directory *akitacache.DirectoryImpl
	lines     [][]byte
	storage   *mem.Storage
	stats     CacheStats
}

func newICache(config CacheConfig, storage *mem.Storage) *icache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	lines := make([][]byte, numSets*config.Associativity)
	for i := range lines {
		lines[i] = make([]byte, config.BlockSize)
	}

	return &icache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines:   lines,
		storage: storage,
	}
}

func (c *icache) line(block *akitacache.Block) []byte {
	return c.lines[block.SetID*c.config.Associativity+block.WayID]
}

// fetch reads n bytes at a storage offset. The access must not cross a
// line. It returns the data and the fetch latency.
func (c *icache) fetch(offset uint64, n int) ([]byte, uint64, error) {
	c.stats.Fetches++

	blockSize := uint64(c.config.BlockSize)
	blockAddr := offset / blockSize * blockSize
	within := offset - blockAddr

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.line(block)[within : within+uint64(n)], c.config.HitLatency, nil
	}

	c.stats.Misses++
	victim := c.directory.FindVictim(blockAddr)
	data, err := c.storage.Read(blockAddr, blockSize)
	if err != nil {
		return nil, 0, err
	}

	line := c.line(victim)
	copy(line, data)
	victim.Tag = blockAddr
	victim.IsValid = true
	c.directory.Visit(victim)

	return line[within : within+uint64(n)], c.config.MissLatency, nil
}

// invalidate drops every line. Memory writes go around the cache, so it
// is invalidated before each job.
func (c *icache) invalidate() {
	c.directory.Reset()
}

func (c *icache) resetStats() CacheStats {
	s := c.stats
	c.stats = CacheStats{}
	return s
}
