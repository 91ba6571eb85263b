// file: internal/conditions/index.go

package conditions

import (
	"sync"
	"sync/atomic"
	"time"

	"ui-conditions/internal/logger"
)

// Entry is one indexed definition. Params lists every parameter the
// definition references, in first-seen order; more than one makes it a group.
type Entry struct {
	Params     []string
	Definition *ConditionDefinition
}

// IsGroup reports whether the definition spans several parameters.
func (e Entry) IsGroup() bool {
	return len(e.Params) > 1
}

// DefinitionIndex maps a control reference key ("name" or "name[N]") to the
// definitions of each kind that reference it. Keys keep insertion order so
// passes run in definition order.
type DefinitionIndex struct {
	entries map[Kind]map[string][]Entry
	keys    map[Kind][]string
	mu      sync.RWMutex
	stats   IndexStats
	logger  *logger.Logger
}

type IndexStats struct {
	Lookups     uint64
	Matches     uint64
	LastUpdated time.Time
}

func NewDefinitionIndex(log *logger.Logger) *DefinitionIndex {
	return &DefinitionIndex{
		entries: make(map[Kind]map[string][]Entry),
		keys:    make(map[Kind][]string),
		stats: IndexStats{
			LastUpdated: time.Now(),
		},
		logger: log,
	}
}

func (idx *DefinitionIndex) Add(kind Kind, key string, entry Entry) {
	if entry.Definition == nil {
		idx.logger.Error("attempted to add nil definition to index", "kind", kind, "key", key)
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.entries[kind]
	if !ok {
		set = make(map[string][]Entry)
		idx.entries[kind] = set
	}
	if _, seen := set[key]; !seen {
		idx.keys[kind] = append(idx.keys[kind], key)
	}
	set[key] = append(set[key], entry)
	idx.stats.LastUpdated = time.Now()

	idx.logger.Debug("definition added to index",
		"kind", kind,
		"key", key,
		"params", entry.Params,
		"totalForKey", len(set[key]))
}

func (idx *DefinitionIndex) Find(kind Kind, key string) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	atomic.AddUint64(&idx.stats.Lookups, 1)
	found := idx.entries[kind][key]
	if len(found) > 0 {
		atomic.AddUint64(&idx.stats.Matches, 1)
	}
	return found
}

// Keys returns the keys of kind in insertion order.
func (idx *DefinitionIndex) Keys(kind Kind) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	keys := make([]string, len(idx.keys[kind]))
	copy(keys, idx.keys[kind])
	return keys
}

// KeysFor returns the keys of kind whose base control is name, plain and
// column-qualified, in insertion order.
func (idx *DefinitionIndex) KeysFor(kind Kind, name string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var keys []string
	for _, key := range idx.keys[kind] {
		if BaseName(key) == name {
			keys = append(keys, key)
		}
	}
	return keys
}

// Count returns the number of distinct definitions of kind.
func (idx *DefinitionIndex) Count(kind Kind) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[*ConditionDefinition]struct{})
	for _, entries := range idx.entries[kind] {
		for _, e := range entries {
			seen[e.Definition] = struct{}{}
		}
	}
	return len(seen)
}

func (idx *DefinitionIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = make(map[Kind]map[string][]Entry)
	idx.keys = make(map[Kind][]string)
	idx.stats.LastUpdated = time.Now()

	idx.logger.Info("definition index cleared")
}

func (idx *DefinitionIndex) GetStats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return IndexStats{
		Lookups:     atomic.LoadUint64(&idx.stats.Lookups),
		Matches:     atomic.LoadUint64(&idx.stats.Matches),
		LastUpdated: idx.stats.LastUpdated,
	}
}
