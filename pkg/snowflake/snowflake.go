// Package snowflake generates unique, time-sortable message IDs.
//
// The reference scheme of timestamp + random suffix is only order-stable when
// no two messages share a millisecond. Snowflake IDs keep the timestamp in the
// high bits and disambiguate collisions with a sequence counter, so message
// IDs are totally ordered even under bursts.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is the custom epoch (January 1, 2024 00:00:00 UTC) in milliseconds.
	Epoch int64 = 1704067200000

	// DefaultWorkerIDBits and DefaultSequenceBits split the 22 non-timestamp
	// bits. A single-process deployment only ever uses worker 0, but the
	// layout is kept so IDs stay stable if sharding is ever introduced.
	DefaultWorkerIDBits uint8 = 10
	DefaultSequenceBits uint8 = 12
)

var (
	ErrInvalidWorkerID      = errors.New("worker ID exceeds maximum value")
	ErrClockMovedBackwards  = errors.New("clock moved backwards")
	ErrInvalidBitAllocation = errors.New("invalid bit allocation: total bits must not exceed 22")
)

// Generator generates unique IDs using the Snowflake algorithm.
type Generator struct {
	mu sync.Mutex

	epoch        int64
	workerID     int64
	workerIDBits uint8
	sequenceBits uint8

	workerIDShift  uint8
	timestampShift uint8
	sequenceMask   int64
	workerIDMask   int64

	sequence      int64
	lastTimestamp int64
}

// Config holds the configuration for the Snowflake generator.
type Config struct {
	Epoch        int64
	WorkerID     int64
	WorkerIDBits uint8
	SequenceBits uint8
}

// NewGenerator creates a new Snowflake ID generator with the given configuration.
func NewGenerator(config Config) (*Generator, error) {
	if config.WorkerIDBits == 0 {
		config.WorkerIDBits = DefaultWorkerIDBits
	}
	if config.SequenceBits == 0 {
		config.SequenceBits = DefaultSequenceBits
	}
	if config.Epoch == 0 {
		config.Epoch = Epoch
	}

	// 41 timestamp bits + workerIDBits + sequenceBits must fit in 63 bits.
	if config.WorkerIDBits+config.SequenceBits > 22 {
		return nil, ErrInvalidBitAllocation
	}

	g := &Generator{
		epoch:        config.Epoch,
		workerID:     config.WorkerID,
		workerIDBits: config.WorkerIDBits,
		sequenceBits: config.SequenceBits,
	}

	g.workerIDShift = g.sequenceBits
	g.timestampShift = g.sequenceBits + g.workerIDBits
	g.sequenceMask = -1 ^ (-1 << g.sequenceBits)
	g.workerIDMask = -1 ^ (-1 << g.workerIDBits)

	if g.workerID > g.workerIDMask || g.workerID < 0 {
		return nil, ErrInvalidWorkerID
	}

	return g, nil
}

// NextID generates the next unique ID.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.currentTimestamp()

	if timestamp < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & g.sequenceMask
		// Sequence overflow - wait for next millisecond
		if g.sequence == 0 {
			timestamp = g.waitNextMillis(g.lastTimestamp)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = timestamp

	id := ((timestamp - g.epoch) << g.timestampShift) |
		(g.workerID << g.workerIDShift) |
		g.sequence

	return id, nil
}

func (g *Generator) currentTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func (g *Generator) waitNextMillis(lastTimestamp int64) int64 {
	timestamp := g.currentTimestamp()
	for timestamp <= lastTimestamp {
		timestamp = g.currentTimestamp()
	}
	return timestamp
}

// GetTimestamp extracts just the timestamp from a Snowflake ID.
func (g *Generator) GetTimestamp(id int64) int64 {
	return (id >> g.timestampShift) + g.epoch
}

// GetSequence extracts just the sequence from a Snowflake ID.
func (g *Generator) GetSequence(id int64) int64 {
	return id & g.sequenceMask
}
