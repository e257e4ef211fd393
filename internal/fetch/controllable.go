package fetch

import (
	"log/slog"
	"sync"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// ControllableFetch holds exactly one active strategy and forwards every
// fetch to it. A mode switch takes effect from the next call onward; it is
// not atomic with respect to an in-flight fetch, so callers needing exact
// mode/fetch pairing must bracket the two themselves.
type ControllableFetch struct {
	record *RecordFetch
	replay *ReplayFetch

	mu      sync.Mutex
	current Fetcher
}

// NewControllableFetch builds the dispatcher with the given strategies,
// starting in record mode when recordMode is true.
func NewControllableFetch(record *RecordFetch, replay *ReplayFetch, recordMode bool) *ControllableFetch {
	c := &ControllableFetch{record: record, replay: replay}
	if recordMode {
		c.SetRecordMode()
	} else {
		c.SetReplayMode()
	}
	return c
}

// SetRecordMode routes subsequent fetches to the record strategy.
func (c *ControllableFetch) SetRecordMode() {
	c.mu.Lock()
	c.current = c.record
	c.mu.Unlock()
	slog.Info("fetch mode set", "mode", "record")
}

// SetReplayMode routes subsequent fetches to the replay strategy.
func (c *ControllableFetch) SetReplayMode() {
	c.mu.Lock()
	c.current = c.replay
	c.mu.Unlock()
	slog.Info("fetch mode set", "mode", "replay")
}

// RecordMode reports whether the record strategy is currently active.
func (c *ControllableFetch) RecordMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.current.(*RecordFetch)
	return ok
}

// Fetch implements Fetcher by forwarding verbatim to the active strategy.
func (c *ControllableFetch) Fetch(req *httparchive.Request, headers map[string]string) *httparchive.ArchivedResponse {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	return current.Fetch(req, headers)
}
