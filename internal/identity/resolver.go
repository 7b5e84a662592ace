// Package identity maps fantasy-platform player IDs to canonical IDs.
package identity

import (
	"time"

	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/player"
)

type key struct {
	platform string
	id       string
}

// Snapshot is an immutable view of the identity mapping table
type Snapshot struct {
	byKey    map[key]int
	loadedAt time.Time
}

// NewSnapshot indexes mappings; later rows win on duplicate keys
func NewSnapshot(mappings []models.IdentityMapping, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		byKey:    make(map[key]int, len(mappings)),
		loadedAt: loadedAt,
	}
	for _, m := range mappings {
		if m.CanonicalID <= 0 {
			continue
		}
		s.byKey[key{m.Platform, m.PlatformPlayerID}] = m.CanonicalID
	}
	return s
}

// Lookup finds the canonical ID for a platform player ID
func (s *Snapshot) Lookup(platform, platformID string) (int, bool) {
	if s == nil || platformID == "" {
		return 0, false
	}
	id, ok := s.byKey[key{platform, platformID}]
	return id, ok
}

// Len returns the number of mappings
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byKey)
}

// LoadedAt returns when the snapshot was read from the store
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// NameIndex matches normalized display names to canonical players.
// A name shared by two or more players is ambiguous and never matches.
type NameIndex struct {
	byName    map[string]int
	ambiguous map[string]struct{}
}

// NewNameIndex builds the index over the request's fused players
func NewNameIndex(players []player.CanonicalPlayer) *NameIndex {
	idx := &NameIndex{
		byName:    make(map[string]int, len(players)),
		ambiguous: make(map[string]struct{}),
	}
	for _, p := range players {
		name := player.NormalizeName(p.Name)
		if name == "" {
			continue
		}
		if _, dup := idx.ambiguous[name]; dup {
			continue
		}
		if existing, ok := idx.byName[name]; ok && existing != p.ID {
			delete(idx.byName, name)
			idx.ambiguous[name] = struct{}{}
			continue
		}
		idx.byName[name] = p.ID
	}
	return idx
}

// Lookup returns the canonical ID for an exact normalized-name match
func (n *NameIndex) Lookup(name string) (int, bool) {
	if n == nil {
		return 0, false
	}
	id, ok := n.byName[player.NormalizeName(name)]
	return id, ok
}

// Ambiguous reports whether the name is shared by several players
func (n *NameIndex) Ambiguous(name string) bool {
	if n == nil {
		return false
	}
	_, ok := n.ambiguous[player.NormalizeName(name)]
	return ok
}

// Method records which path resolved an identity
type Method string

const (
	MethodMapping    Method = "mapping"
	MethodName       Method = "name"
	MethodUnresolved Method = "unresolved"
)

// Resolver combines the mapping snapshot with the name fallback. It is safe for concurrent reads.
type Resolver struct {
	snapshot *Snapshot
	names    *NameIndex
}

// NewResolver creates a resolver; either argument may be nil
func NewResolver(snapshot *Snapshot, names *NameIndex) *Resolver {
	return &Resolver{snapshot: snapshot, names: names}
}

// Resolve returns the canonical ID for a platform player. Unresolved players are not an error.
func (r *Resolver) Resolve(platform, platformID, displayName string) (int, bool) {
	id, _, ok := r.ResolveWithMethod(platform, platformID, displayName)
	return id, ok
}

// ResolveWithMethod is Resolve plus the path that produced the answer
func (r *Resolver) ResolveWithMethod(platform, platformID, displayName string) (int, Method, bool) {
	if r == nil {
		return 0, MethodUnresolved, false
	}
	if id, ok := r.snapshot.Lookup(platform, platformID); ok {
		return id, MethodMapping, true
	}
	if id, ok := r.names.Lookup(displayName); ok {
		return id, MethodName, true
	}
	return 0, MethodUnresolved, false
}
