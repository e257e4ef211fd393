package fetch

import (
	"log/slog"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// ReplayFetch serves responses from the archive and never touches the
// network. With closest-match enabled it substitutes the path-nearest
// archived response when the exact request is absent.
type ReplayFetch struct {
	archive     Archive
	useClosest  bool
	diffUnknown bool
	misses      MissTracker
}

// NewReplayFetch builds the replay strategy. misses may be nil.
func NewReplayFetch(archive Archive, useClosest, diffUnknown bool, misses MissTracker) *ReplayFetch {
	return &ReplayFetch{
		archive:     archive,
		useClosest:  useClosest,
		diffUnknown: diffUnknown,
		misses:      misses,
	}
}

// Fetch implements Fetcher. A miss is a designed outcome, not an error: it
// is logged at warning level, with a unified diff against the nearest
// archived request when diff-on-unknown is enabled, and reported to the
// miss tracker.
func (f *ReplayFetch) Fetch(req *httparchive.Request, headers map[string]string) *httparchive.ArchivedResponse {
	resp, found := f.archive.Get(req)

	if !found && f.useClosest {
		if closest, ok := f.archive.FindClosest(req, true); ok {
			if resp, found = f.archive.Get(closest); found {
				slog.Info("request not found, using closest match",
					"request", req.String(),
					"closest", closest.String(),
				)
			}
		}
	}

	if f.misses != nil {
		f.misses.Record(req, false, !found)
	}

	if !found {
		reason := req.String()
		if f.diffUnknown {
			if diff := f.archive.Diff(req); diff != "" {
				reason += "\nNearest request diff ('-' for archived request, '+' for current request):\n" + diff
			}
		}
		slog.Warn("could not replay request", "reason", reason)
		return nil
	}
	return resp
}
