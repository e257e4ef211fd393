package fetch

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})
	return &buf
}

func TestReplayFetchExactMatch(t *testing.T) {
	archive := httparchive.New()
	req := httparchive.NewRequest("GET", "www.example.com", "/page", nil, nil)
	resp := textResponse("archived page")
	archive.Set(req, resp)

	// Closest-match enabled must not shadow an exact hit.
	f := NewReplayFetch(archive, true, false, nil)
	if got := f.Fetch(req, nil); got != resp {
		t.Fatalf("Fetch() = %v, want exact archived response", got)
	}
}

func TestReplayFetchMiss(t *testing.T) {
	archive := httparchive.New()
	req := httparchive.NewRequest("GET", "www.example.com", "/missing", nil, nil)
	tracker := &fakeTracker{}
	buf := captureLogs(t)

	f := NewReplayFetch(archive, false, false, tracker)
	if got := f.Fetch(req, nil); got != nil {
		t.Fatalf("Fetch() = %v, want nil on miss", got)
	}

	want := []trackerCall{{key: req.Key(), isRecordMode: false, isCacheMiss: true}}
	if diff := cmp.Diff(want, tracker.calls, cmp.AllowUnexported(trackerCall{})); diff != "" {
		t.Fatalf("tracker calls mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "could not replay") {
		t.Fatalf("expected miss warning, got %q", buf.String())
	}
}

func TestReplayFetchClosestMatch(t *testing.T) {
	archive := httparchive.New()
	archived := httparchive.NewRequest("GET", "www.example.com", "/products/list?page=1", nil, nil)
	resp := textResponse("product list")
	archive.Set(archived, resp)

	req := httparchive.NewRequest("GET", "www.example.com", "/products/list?page=2", nil, nil)
	tracker := &fakeTracker{}
	buf := captureLogs(t)

	f := NewReplayFetch(archive, true, false, tracker)
	if got := f.Fetch(req, nil); got != resp {
		t.Fatalf("Fetch() = %v, want closest-match response", got)
	}
	if !strings.Contains(buf.String(), "closest match") {
		t.Fatalf("expected substitution notice, got %q", buf.String())
	}
	// A substituted response is not a cache miss.
	want := []trackerCall{{key: req.Key(), isRecordMode: false, isCacheMiss: false}}
	if diff := cmp.Diff(want, tracker.calls, cmp.AllowUnexported(trackerCall{})); diff != "" {
		t.Fatalf("tracker calls mismatch (-want +got):\n%s", diff)
	}
}

func TestReplayFetchClosestMatchDisabled(t *testing.T) {
	archive := httparchive.New()
	archived := httparchive.NewRequest("GET", "www.example.com", "/products/list?page=1", nil, nil)
	archive.Set(archived, textResponse("product list"))

	req := httparchive.NewRequest("GET", "www.example.com", "/products/list?page=2", nil, nil)
	f := NewReplayFetch(archive, false, false, nil)
	if got := f.Fetch(req, nil); got != nil {
		t.Fatalf("Fetch() = %v, want nil with closest match disabled", got)
	}
}

func TestReplayFetchDiffOnUnknown(t *testing.T) {
	archive := httparchive.New()
	archived := httparchive.NewRequest("GET", "www.example.com", "/a/b/c", nil, map[string]string{"Accept": "text/html"})
	archive.Set(archived, textResponse("abc"))

	req := httparchive.NewRequest("GET", "www.example.com", "/a/b/d", nil, map[string]string{"Accept": "application/json"})
	buf := captureLogs(t)

	f := NewReplayFetch(archive, false, true, nil)
	if got := f.Fetch(req, nil); got != nil {
		t.Fatalf("Fetch() = %v, want nil", got)
	}
	logged := buf.String()
	if !strings.Contains(logged, "Nearest request diff") {
		t.Fatalf("expected diff header in miss log, got %q", logged)
	}
	if !strings.Contains(logged, "-") || !strings.Contains(logged, "+") {
		t.Fatalf("expected unified diff markers in miss log, got %q", logged)
	}
}
