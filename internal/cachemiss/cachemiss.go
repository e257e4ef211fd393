// Package cachemiss tracks, per fetch, whether the archive could serve the
// request and in which mode the fetch ran. The counters give a recording or
// replay session a quick health readout.
package cachemiss

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// Stats holds per-mode request and miss counters.
type Stats struct {
	Total          int `json:"total"`
	RecordRequests int `json:"record_requests"`
	ReplayRequests int `json:"replay_requests"`
	RecordMisses   int `json:"record_misses"`
	ReplayMisses   int `json:"replay_misses"`
}

// Archive accumulates cache-miss telemetry. Safe for concurrent use.
type Archive struct {
	mu     sync.Mutex
	stats  Stats
	missed []string
}

// New returns an empty tracker.
func New() *Archive {
	return &Archive{}
}

// Record notes one fetch: which mode handled it and whether the archive
// ultimately missed.
func (a *Archive) Record(req *httparchive.Request, isRecordMode, isCacheMiss bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Total++
	if isRecordMode {
		a.stats.RecordRequests++
		if isCacheMiss {
			a.stats.RecordMisses++
		}
	} else {
		a.stats.ReplayRequests++
		if isCacheMiss {
			a.stats.ReplayMisses++
		}
	}
	if isCacheMiss {
		a.missed = append(a.missed, req.Key())
	}
}

// Snapshot returns a copy of the current counters.
func (a *Archive) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Missed returns the keys of requests that missed, in observation order.
func (a *Archive) Missed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.missed))
	copy(out, a.missed)
	return out
}

type persisted struct {
	Stats  Stats    `json:"stats"`
	Missed []string `json:"missed,omitempty"`
}

// Save writes the tracker state as JSON.
func (a *Archive) Save(path string) error {
	a.mu.Lock()
	p := persisted{Stats: a.stats, Missed: a.missed}
	a.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("cachemiss: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cachemiss: write %s: %w", path, err)
	}
	return nil
}

// Load reads tracker state previously written by Save.
func Load(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cachemiss: read %s: %w", path, err)
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cachemiss: parse %s: %w", path, err)
	}
	return &Archive{stats: p.Stats, missed: p.Missed}, nil
}
