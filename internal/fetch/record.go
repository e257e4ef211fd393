package fetch

import (
	"errors"
	"log/slog"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// liveFetcher is the network seam RecordFetch drives on a genuine miss.
type liveFetcher interface {
	Fetch(req *httparchive.Request, headers map[string]string) *LiveResponse
}

// RecordFetch performs real fetches and persists the responses. A request
// already present in the archive is returned as-is: within one recording
// session an exact repeat never re-hits the network.
type RecordFetch struct {
	archive      Archive
	live         liveFetcher
	injectScript bool
	misses       MissTracker
	previous     *httparchive.Request
}

// NewRecordFetch builds the record strategy. misses may be nil.
func NewRecordFetch(archive Archive, resolve Resolver, injectScript bool, misses MissTracker) *RecordFetch {
	return &RecordFetch{
		archive:      archive,
		live:         NewLiveFetcher(resolve),
		injectScript: injectScript,
		misses:       misses,
	}
}

// Fetch implements Fetcher. Miss bookkeeping happens before the dedup
// lookup: every record-mode pass-through is reported as a non-miss, even
// when the live fetch later fails.
func (f *RecordFetch) Fetch(req *httparchive.Request, headers map[string]string) *httparchive.ArchivedResponse {
	if f.misses != nil {
		f.misses.Record(req, true, false)
	}

	if resp, ok := f.archive.Get(req); ok {
		prev := "none"
		if f.previous != nil {
			prev = f.previous.String()
		}
		slog.Debug("repeated request found", "request", req.String(), "previous", prev)
		return resp
	}
	f.previous = req

	live := f.live.Fetch(req, headers)
	if live == nil {
		return nil
	}

	resp := &httparchive.ArchivedResponse{
		Proto:   live.Proto,
		Status:  live.Status,
		Reason:  live.Reason,
		Headers: live.Headers,
		Chunks:  live.Chunks,
	}
	if f.injectScript {
		if err := resp.InjectDeterministicScript(); err != nil {
			slog.Error("failed to inject deterministic script", "request", req.String(), "error", err)
			var ie *httparchive.InjectionError
			if errors.As(err, &ie) && ie.Text != "" {
				slog.Debug("request content", "text", ie.Text)
			}
		}
	}

	slog.Debug("recorded", "request", req.String())
	f.archive.Set(req, resp)
	return resp
}
