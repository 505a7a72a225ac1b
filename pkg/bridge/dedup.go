// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zeebo/blake3"
)

// Deduper suppresses retried deliveries of identical payloads. The upstream
// transport redelivers at least once, so an identical raw body seen again
// must be acknowledged without reprocessing. Entries are keyed by a content
// hash and kept in a bounded, expiring set so long-running processes don't
// accumulate memory.
type Deduper struct {
	mu   sync.Mutex
	seen *expirable.LRU[[32]byte, struct{}]
}

// NewDeduper bounds the set at size entries, each remembered for ttl.
func NewDeduper(size int, ttl time.Duration) *Deduper {
	return &Deduper{seen: expirable.NewLRU[[32]byte, struct{}](size, nil, ttl)}
}

// Seen records the payload and reports whether it was already present.
func (d *Deduper) Seen(payload []byte) bool {
	key := blake3.Sum256(payload)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Get(key); ok {
		return true
	}
	d.seen.Add(key, struct{}{})
	return false
}
