// Package peer implements the peer manager: known/connected peer
// bookkeeping, discovery candidate intake, and reconnect backoff.
package peer

import (
	"sync"

	"github.com/vrfchain/node/types"
)

// Status is a known peer's connection lifecycle state.
type Status int

const (
	Connecting Status = iota
	Connected
	Disconnected
	Failed
)

// Known is the bookkeeping record for a peer the manager has heard of.
type Known struct {
	Address            string
	PublicKey          types.PublicKey
	Status             Status
	LastSeenMs         uint64
	ConnectionAttempts int
	LastAttemptMs      uint64
}

// Config bounds the manager's target connectivity and retry policy.
type Config struct {
	MinPeers         int
	MaxPeers         int
	MaxRetryAttempts int
	RetryIntervalMs  uint64
	PeerExpirationMs uint64
}

// DefaultConfig mirrors the node's default CLI-surface values.
func DefaultConfig() Config {
	return Config{
		MinPeers:         4,
		MaxPeers:         32,
		MaxRetryAttempts: 5,
		RetryIntervalMs:  10_000,
		PeerExpirationMs: 120_000,
	}
}

// Manager owns the known-peer and connected-peer maps.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	self      types.PublicKey
	known     map[types.PublicKey]*Known
	connected map[types.PublicKey]struct{}
}

// New creates a Manager for self (so self-connections are rejected),
// configured by cfg.
func New(self types.PublicKey, cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		self:      self,
		known:     make(map[types.PublicKey]*Known),
		connected: make(map[types.PublicKey]struct{}),
	}
}

// Discover offers a candidate peer learned from a seed list, neighbor
// gossip, DNS, or local-network broadcast. It is accepted only if it
// is not self, not already known, and has a non-empty address.
func (m *Manager) Discover(pk types.PublicKey, address string, nowMs uint64) bool {
	if pk == m.self || address == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.known[pk]; ok {
		return false
	}
	m.known[pk] = &Known{
		Address:    address,
		PublicKey:  pk,
		Status:     Disconnected,
		LastSeenMs: nowMs,
	}
	return true
}

// MarkConnecting records a connection attempt starting.
func (m *Manager) MarkConnecting(pk types.PublicKey, nowMs uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.known[pk]
	if !ok {
		return
	}
	k.Status = Connecting
	k.ConnectionAttempts++
	k.LastAttemptMs = nowMs
}

// MarkConnected records a successful connection.
func (m *Manager) MarkConnected(pk types.PublicKey, nowMs uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.known[pk]; ok {
		k.Status = Connected
		k.LastSeenMs = nowMs
	}
	m.connected[pk] = struct{}{}
}

// MarkDisconnected records a connection drop, demoting the peer back
// to Disconnected so it becomes eligible for reconnect.
func (m *Manager) MarkDisconnected(pk types.PublicKey, nowMs uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connected, pk)
	if k, ok := m.known[pk]; ok {
		k.Status = Disconnected
		k.LastSeenMs = nowMs
	}
}

// MarkFailed records a failed connection attempt.
func (m *Manager) MarkFailed(pk types.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.known[pk]; ok {
		k.Status = Failed
	}
}

// ConnectedCount returns the number of currently connected peers.
func (m *Manager) ConnectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected)
}

// NeedsMorePeers reports whether the manager should actively dial out
// to reach MinPeers.
func (m *Manager) NeedsMorePeers() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected) < m.cfg.MinPeers
}

// AtCapacity reports whether MaxPeers connections are already held.
func (m *Manager) AtCapacity() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected) >= m.cfg.MaxPeers
}

// CandidatesToDial returns known, disconnected peers eligible for a
// reconnect attempt: under the retry cap and past the retry interval
// since the last attempt.
func (m *Manager) CandidatesToDial(nowMs uint64) []Known {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Known
	for _, k := range m.known {
		if k.Status == Connected || k.Status == Connecting {
			continue
		}
		if k.ConnectionAttempts >= m.cfg.MaxRetryAttempts {
			continue
		}
		if nowMs-k.LastAttemptMs < m.cfg.RetryIntervalMs {
			continue
		}
		out = append(out, *k)
	}
	return out
}

// ExpireIdle drops known peers that have been idle (disconnected and
// unseen) beyond PeerExpirationMs, making room for fresh discovery.
func (m *Manager) ExpireIdle(nowMs uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pk, k := range m.known {
		if k.Status == Connected || k.Status == Connecting {
			continue
		}
		if nowMs-k.LastSeenMs > m.cfg.PeerExpirationMs {
			delete(m.known, pk)
		}
	}
}

// Connected returns the set of currently connected peer public keys.
func (m *Manager) Connected() []types.PublicKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.PublicKey, 0, len(m.connected))
	for pk := range m.connected {
		out = append(out, pk)
	}
	return out
}
