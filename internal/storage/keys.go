package storage

import (
	"time"

	"github.com/google/uuid"
)

// KeyGenerator produces storage keys for snapshot objects. Uniqueness is
// carried entirely by the random UUID segment; the date segments only keep
// bucket listings navigable. Keys are never reused: a retried upload keeps
// the key already assigned to its event.
type KeyGenerator struct {
	prefix string
	now    func() time.Time
}

// NewKeyGenerator constructs a generator. An empty prefix defaults to
// "snapshots".
func NewKeyGenerator(prefix string) *KeyGenerator {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &KeyGenerator{prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

// Next returns a fresh key. It never blocks and never fails.
func (g *KeyGenerator) Next() string {
	return g.prefix + "/" + g.now().Format("2006/01/02") + "/" + uuid.NewString() + ".bin"
}
