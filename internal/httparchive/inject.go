package httparchive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// deterministicScript pins the sources of nondeterminism pages commonly
// consult, so a recorded page computes the same values on every replay.
const deterministicScript = `<script>
(function () {
  var random_count = 0;
  var random_seed = 0.462;
  var time_seed = 1204251968254;
  Math.random = function () {
    random_count++;
    return (random_seed + random_count * 0.0000431) % 1;
  };
  var orig_date = Date;
  Date = function () {
    if (arguments.length) {
      return new orig_date(orig_date.prototype.constructor.apply(this, arguments));
    }
    return new orig_date(time_seed);
  };
  Date.now = function () { return time_seed; };
  Date.parse = orig_date.parse;
  Date.UTC = orig_date.UTC;
  Date.prototype = orig_date.prototype;
})();
</script>`

var headTagRe = regexp.MustCompile(`(?i)<head[^>]*>`)

// InjectionError reports a response body the deterministic script could not
// be injected into. Text carries the offending content for diagnostics.
type InjectionError struct {
	Reason string
	Text   string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("httparchive: script injection failed: %s", e.Reason)
}

// InjectDeterministicScript rewrites an HTML response body to insert
// deterministicScript directly after the <head> tag. Bodies that are
// content-encoded, not HTML, or missing a <head> tag fail with an
// *InjectionError; the response is left unmodified on failure.
func (r *ArchivedResponse) InjectDeterministicScript() error {
	if enc := r.GetHeader("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
		return &InjectionError{Reason: "content-encoded body: " + enc}
	}
	if ct := r.GetHeader("Content-Type"); !strings.Contains(strings.ToLower(ct), "text/html") {
		return &InjectionError{Reason: "not an html response: " + ct}
	}
	body := r.Body()
	loc := headTagRe.FindIndex(body)
	if loc == nil {
		return &InjectionError{Reason: "no <head> tag", Text: snippet(body)}
	}

	injected := make([]byte, 0, len(body)+len(deterministicScript))
	injected = append(injected, body[:loc[1]]...)
	injected = append(injected, deterministicScript...)
	injected = append(injected, body[loc[1]:]...)

	r.Chunks = [][]byte{injected}
	if r.GetHeader("Content-Length") != "" {
		r.SetHeader("Content-Length", strconv.Itoa(len(injected)))
	}
	return nil
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
