// Package fetch implements the mode-switchable fetch core: record mode
// performs real network fetches and persists the results, replay mode
// serves previously persisted results without touching the network.
//
// RecordFetch, ReplayFetch and ControllableFetch all satisfy Fetcher, so
// any of the three can stand behind the same call site. A nil response is
// the uniform "no usable response" signal; every failure path logs before
// returning it.
package fetch

import "github.com/AlexxNica/web-page-replay/internal/httparchive"

// Fetcher is the single fetch contract shared by the record path, the
// replay path and the mode-switchable dispatcher.
type Fetcher interface {
	Fetch(req *httparchive.Request, headers map[string]string) *httparchive.ArchivedResponse
}

// Archive is the keyed response store the core reads and writes. It is
// expected to be safe for concurrent reads; callers issuing concurrent
// writes for the same key must serialize them to keep record-mode dedup
// meaningful.
type Archive interface {
	Contains(req *httparchive.Request) bool
	Get(req *httparchive.Request) (*httparchive.ArchivedResponse, bool)
	Set(req *httparchive.Request, resp *httparchive.ArchivedResponse)
	FindClosest(req *httparchive.Request, restrictToPath bool) (*httparchive.Request, bool)
	Diff(req *httparchive.Request) string
}

// MissTracker receives one record per fetch: the mode that handled it and
// whether the archive missed.
type MissTracker interface {
	Record(req *httparchive.Request, isRecordMode, isCacheMiss bool)
}

// Resolver maps a hostname to a dialable address. An empty result means
// resolution failed.
type Resolver func(host string) string
