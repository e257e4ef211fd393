// Package dnscache resolves hostnames to addresses with a small in-process
// cache, so repeated fetches against the same origin do one lookup.
package dnscache

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// LookupFunc is the underlying resolution primitive. It matches
// net.Resolver.LookupHost.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver caches successful lookups forever; failed lookups are not cached.
// Safe for concurrent use.
type Resolver struct {
	mu      sync.Mutex
	cache   map[string]string
	lookup  LookupFunc
	timeout time.Duration
}

// New returns a Resolver backed by the system resolver.
func New() *Resolver {
	return NewWithLookup(net.DefaultResolver.LookupHost)
}

// NewWithLookup returns a Resolver using the given lookup primitive.
func NewWithLookup(lookup LookupFunc) *Resolver {
	return &Resolver{
		cache:   make(map[string]string),
		lookup:  lookup,
		timeout: 10 * time.Second,
	}
}

// Lookup resolves host to a single address, or "" when resolution fails.
func (r *Resolver) Lookup(host string) string {
	r.mu.Lock()
	if addr, ok := r.cache[host]; ok {
		r.mu.Unlock()
		return addr
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	addrs, err := r.lookup(ctx, host)
	if err != nil || len(addrs) == 0 {
		slog.Debug("dns lookup failed", "host", host, "error", err)
		return ""
	}

	addr := addrs[0]
	r.mu.Lock()
	r.cache[host] = addr
	r.mu.Unlock()
	return addr
}
