package engine

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator names new engines.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default: ids sort by creation time.
type UUIDv7Generator struct{}

// Generate panics only if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialGenerator yields "<prefix>-1", "<prefix>-2", ... and never runs
// out, so traces that embed engine ids stay byte-identical between runs.
// Safe for concurrent use.
type SequentialGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialGenerator returns a generator for prefix, "engine" if empty.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "engine"
	}
	return &SequentialGenerator{prefix: prefix}
}

func (g *SequentialGenerator) Generate() string {
	return g.prefix + "-" + strconv.FormatInt(g.n.Add(1), 10)
}
