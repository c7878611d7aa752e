package testfixtures

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator yields "<prefix>-<n>" identifiers. It is safe for concurrent use.
type IDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewIDGenerator returns a generator for prefix, or "id" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
}

// Func adapts the generator to the idGenerator parameter of the service constructors.
func (g *IDGenerator) Func() func() string {
	return g.Next
}

// Issued reports how many identifiers were handed out.
func (g *IDGenerator) Issued() uint64 {
	return g.counter.Load()
}
