package proxy

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

type fakeFetcher struct {
	resp    *httparchive.ArchivedResponse
	lastReq *httparchive.Request
}

func (f *fakeFetcher) Fetch(req *httparchive.Request, headers map[string]string) *httparchive.ArchivedResponse {
	f.lastReq = req
	return f.resp
}

func TestProxyServesArchivedResponse(t *testing.T) {
	fetcher := &fakeFetcher{
		resp: &httparchive.ArchivedResponse{
			Proto:  "HTTP/1.1",
			Status: 200,
			Reason: "OK",
			Headers: []httparchive.Header{
				{Name: "Content-Type", Value: "text/html"},
				{Name: "Transfer-Encoding", Value: "chunked"},
				{Name: "Connection", Value: "keep-alive"},
			},
			Chunks: [][]byte{[]byte("<html>"), []byte("</html>")},
		},
	}
	s := New("127.0.0.1:0", fetcher)

	r := httptest.NewRequest("GET", "http://www.example.com/page?q=1", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "<html></html>" {
		t.Fatalf("body = %q, want concatenated chunks", body)
	}
	if got := res.Header.Get("Content-Type"); got != "text/html" {
		t.Fatalf("Content-Type = %q", got)
	}
	// Recorded framing headers must not leak into the replayed response.
	if got := res.Header.Get("Connection"); got == "keep-alive" {
		t.Fatal("hop-by-hop Connection header copied through")
	}
	if got := res.Header.Values("Transfer-Encoding"); len(got) > 0 && got[0] == "chunked" {
		t.Fatal("recorded Transfer-Encoding copied through")
	}

	if fetcher.lastReq.Method != "GET" || fetcher.lastReq.Host != "www.example.com" {
		t.Fatalf("fetcher request = %s", fetcher.lastReq)
	}
	if fetcher.lastReq.Path != "/page?q=1" {
		t.Fatalf("fetcher path = %q, want query preserved", fetcher.lastReq.Path)
	}
}

func TestProxyMissReturns404(t *testing.T) {
	s := New("127.0.0.1:0", &fakeFetcher{resp: nil})

	r := httptest.NewRequest("GET", "http://www.example.com/missing", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestProxyForwardsRequestBody(t *testing.T) {
	fetcher := &fakeFetcher{resp: &httparchive.ArchivedResponse{
		Proto: "HTTP/1.1", Status: 204, Reason: "No Content", Chunks: nil,
	}}
	s := New("127.0.0.1:0", fetcher)

	r := httptest.NewRequest("POST", "http://api.example.com/items", strings.NewReader("a=1&b=2"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	if string(fetcher.lastReq.Body) != "a=1&b=2" {
		t.Fatalf("request body = %q, want forwarded body", fetcher.lastReq.Body)
	}
}
