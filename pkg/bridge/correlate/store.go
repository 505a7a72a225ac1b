// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

// Package correlate stores the durable links between a relayed message and
// the copy it produced on the other side of a bridge.
//
// Every successfully mirrored message yields two records: one keyed by the
// origin timestamp pointing at the copy, and one keyed by the copy's
// timestamp pointing back. Lookups by either timestamp therefore find the
// other side directly, which is what edit, delete, and thread propagation
// need.
package correlate

import (
	"context"
	"sync"
)

// Record describes where a message's mirrored copy lives. The workspace and
// channel fields use human-facing names (workspace domain, channel name);
// PeerConversation is the raw conversation ID the copy was posted to, since
// that is what the chat API wants for updates and deletions.
type Record struct {
	Workspace        string
	Channel          string
	PeerWorkspace    string
	PeerChannel      string
	PeerConversation string
	PeerTS           string
}

// Complete reports whether every field required for propagation is present.
// Incomplete records are rejected at insert time so a half-built correlation
// can never silently break a later edit or delete.
func (r Record) Complete() bool {
	return r.Workspace != "" && r.Channel != "" &&
		r.PeerWorkspace != "" && r.PeerChannel != "" &&
		r.PeerConversation != "" && r.PeerTS != ""
}

// reverse derives the backward record for a forward record keyed by originTS
// that was observed in originConversation.
func (r Record) reverse(originTS, originConversation string) Record {
	return Record{
		Workspace:        r.PeerWorkspace,
		Channel:          r.PeerChannel,
		PeerWorkspace:    r.Workspace,
		PeerChannel:      r.Channel,
		PeerConversation: originConversation,
		PeerTS:           originTS,
	}
}

// Store is the correlation contract. Put is insert-once: a duplicate key or
// an incomplete record returns false without mutating anything, which makes
// retried deliveries harmless. Delete removes the record and its paired
// mirror together. Link writes the forward and backward records as one
// atomic pair.
type Store interface {
	Get(ctx context.Context, ts string) (*Record, error)
	Put(ctx context.Context, ts string, rec Record) (bool, error)
	Delete(ctx context.Context, ts string) (bool, error)
	Link(ctx context.Context, originTS, originConversation string, fwd Record) (bool, error)
}

// Memory is the in-process Store for single-instance deployments where
// correlation does not need to survive a restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Get(_ context.Context, ts string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[ts]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) Put(_ context.Context, ts string, rec Record) (bool, error) {
	if ts == "" || !rec.Complete() {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[ts]; exists {
		return false, nil
	}
	m.records[ts] = rec
	return true, nil
}

func (m *Memory) Delete(_ context.Context, ts string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[ts]
	if !ok {
		return false, nil
	}
	delete(m.records, ts)
	delete(m.records, rec.PeerTS)
	return true, nil
}

func (m *Memory) Link(_ context.Context, originTS, originConversation string, fwd Record) (bool, error) {
	if originTS == "" || originConversation == "" || !fwd.Complete() {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[originTS]; exists {
		return false, nil
	}
	if _, exists := m.records[fwd.PeerTS]; exists {
		return false, nil
	}
	m.records[originTS] = fwd
	m.records[fwd.PeerTS] = fwd.reverse(originTS, originConversation)
	return true, nil
}
