package httparchive

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

// closestMatchCutoff is the minimum similarity ratio for FindClosest to
// consider a candidate at all.
const closestMatchCutoff = 0.6

// Archive maps request identities to archived responses. Safe for
// concurrent use.
type Archive struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Entry pairs a request with its recorded response.
type Entry struct {
	Request  *Request          `json:"request"`
	Response *ArchivedResponse `json:"response"`
}

// New returns an empty archive.
func New() *Archive {
	return &Archive{entries: make(map[string]*Entry)}
}

// Load reads an archive previously written by Save.
func Load(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("httparchive: read %s: %w", path, err)
	}
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("httparchive: parse %s: %w", path, err)
	}
	a := New()
	for _, e := range entries {
		if e.Request == nil || e.Response == nil {
			return nil, fmt.Errorf("httparchive: %s: entry missing request or response", path)
		}
		a.entries[e.Request.Key()] = e
	}
	return a, nil
}

// Save writes the archive as a JSON entry list, sorted by request key so
// repeated recordings of the same session diff cleanly.
func (a *Archive) Save(path string) error {
	a.mu.RLock()
	entries := make([]*Entry, 0, len(a.entries))
	for _, e := range a.entries {
		entries = append(entries, e)
	}
	a.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Request.Key() < entries[j].Request.Key()
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("httparchive: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("httparchive: write %s: %w", path, err)
	}
	return nil
}

// Contains reports whether an exact match for req is archived.
func (a *Archive) Contains(req *Request) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.entries[req.Key()]
	return ok
}

// Get returns the archived response for an exact match of req.
func (a *Archive) Get(req *Request) (*ArchivedResponse, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[req.Key()]
	if !ok {
		return nil, false
	}
	return e.Response, true
}

// Set stores resp under req, overwriting any prior entry for that key.
func (a *Archive) Set(req *Request, resp *ArchivedResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[req.Key()] = &Entry{Request: req, Response: resp}
}

// Len returns the number of archived entries.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Requests returns all archived requests sorted by key.
func (a *Archive) Requests() []*Request {
	a.mu.RLock()
	reqs := make([]*Request, 0, len(a.entries))
	for _, e := range a.entries {
		reqs = append(reqs, e.Request)
	}
	a.mu.RUnlock()

	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Key() < reqs[j].Key() })
	return reqs
}

// FindClosest returns the archived request most similar to req, or false
// when nothing clears the similarity cutoff. Candidates are limited to the
// same method and host. With restrictToPath, similarity is computed over
// path segments only; otherwise over the full request summary.
func (a *Archive) FindClosest(req *Request, restrictToPath bool) (*Request, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var best *Request
	bestRatio := closestMatchCutoff
	for _, e := range a.entries {
		cand := e.Request
		if cand.Method != req.Method || cand.Host != req.Host {
			continue
		}
		var ratio float64
		if restrictToPath {
			ratio = similarity(splitPath(req.Path), splitPath(cand.Path))
		} else {
			ratio = similarity(chars(req.Summary()), chars(cand.Summary()))
		}
		if ratio > bestRatio {
			bestRatio = ratio
			best = cand
		}
	}
	return best, best != nil
}

// Diff returns a unified diff between the closest archived request and req
// ('-' lines are the archived request, '+' lines the current one), or ""
// when no candidate exists or the requests render identically.
func (a *Archive) Diff(req *Request) string {
	closest, ok := a.FindClosest(req, false)
	if !ok {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(closest.Verbose()),
		B:        difflib.SplitLines(req.Verbose()),
		FromFile: "archived",
		ToFile:   "current",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

// similarity is the SequenceMatcher ratio over element sequences; callers
// choose the granularity (path segments or characters).
func similarity(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '?' || r == '&' })
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
