package dedupe

import "strings"

// Duplicate records a later occurrence of an already seen address
type Duplicate struct {
	Index                int
	FirstOccurrenceIndex int
}

// ScanResult holds the outcome of a duplicate scan
type ScanResult struct {
	UniqueIndices map[int]struct{}
	Duplicates    []Duplicate
}

// Scan finds duplicates in a list of canonical addresses
// Empty entries stand for invalid addresses and are skipped entirely
func Scan(addresses []string) ScanResult {
	result := ScanResult{
		UniqueIndices: make(map[int]struct{}, len(addresses)),
		Duplicates:    []Duplicate{},
	}

	tracker := NewTracker()
	for i, addr := range addresses {
		if addr == "" {
			continue
		}
		first, dup := tracker.Observe(i, addr)
		if dup {
			result.Duplicates = append(result.Duplicates, Duplicate{Index: i, FirstOccurrenceIndex: first})
			continue
		}
		result.UniqueIndices[i] = struct{}{}
	}

	return result
}

// Tracker is the incremental form of Scan
// A Tracker lives for one validation pass so duplicates across chunk boundaries are caught
type Tracker struct {
	seen map[string]int
}

// NewTracker creates a new empty Tracker instance
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]int)}
}

// Observe records canonical at index
// It returns the index of the first occurrence and whether canonical was already seen
func (t *Tracker) Observe(index int, canonical string) (int, bool) {
	key := strings.ToLower(canonical)
	if first, ok := t.seen[key]; ok {
		return first, true
	}
	t.seen[key] = index
	return index, false
}

// Len returns the number of distinct addresses observed
func (t *Tracker) Len() int {
	return len(t.seen)
}
