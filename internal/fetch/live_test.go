package fetch

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// rawOrigin serves one connection with a canned raw HTTP response and
// captures the request bytes it received.
func rawOrigin(t *testing.T, rawResponse string) (host string, requests <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		var req strings.Builder
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			req.WriteString(line)
			if line == "\r\n" {
				break
			}
		}
		ch <- req.String()
		_, _ = io.WriteString(conn, rawResponse)
	}()
	return ln.Addr().String(), ch
}

func TestLiveFetcherResolutionFailure(t *testing.T) {
	f := NewLiveFetcher(func(host string) string { return "" })

	req := httparchive.NewRequest("GET", "unknown.example", "/", nil, nil)
	if got := f.Fetch(req, nil); got != nil {
		t.Fatalf("Fetch() = %v, want nil on resolution failure", got)
	}
}

func TestLiveFetcherConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close() // nothing listens here anymore

	host, port, _ := net.SplitHostPort(addr)
	f := NewLiveFetcher(func(string) string { return host })

	req := httparchive.NewRequest("GET", "dead.example:"+port, "/", nil, nil)
	if got := f.Fetch(req, nil); got != nil {
		t.Fatalf("Fetch() = %v, want nil on connect failure", got)
	}
}

func TestLiveFetcherContentLengthBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	addr, requests := rawOrigin(t, raw)
	host, port, _ := net.SplitHostPort(addr)

	f := NewLiveFetcher(func(string) string { return host })
	req := httparchive.NewRequest("GET", "www.example.com:"+port, "/greeting?x=1", nil, nil)

	resp := f.Fetch(req, map[string]string{"Accept": "text/plain"})
	if resp == nil {
		t.Fatal("Fetch() = nil, want response")
	}
	if resp.Status != 200 || resp.Reason != "OK" || resp.Proto != "HTTP/1.1" {
		t.Fatalf("status line = %q %d %q", resp.Proto, resp.Status, resp.Reason)
	}
	if diff := cmp.Diff([][]byte{[]byte("hello")}, resp.Chunks); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}

	sent := <-requests
	if !strings.HasPrefix(sent, "GET /greeting?x=1 HTTP/1.1\r\n") {
		t.Fatalf("request line = %q", sent)
	}
	if !strings.Contains(sent, "Host: www.example.com:"+port) {
		t.Fatalf("request missing Host header: %q", sent)
	}
	if !strings.Contains(sent, "Accept: text/plain") {
		t.Fatalf("request missing Accept header: %q", sent)
	}
}

func TestLiveFetcherChunkedBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"5\r\nhello\r\n7\r\n, chunk\r\n0\r\n\r\n"
	addr, _ := rawOrigin(t, raw)
	host, port, _ := net.SplitHostPort(addr)

	f := NewLiveFetcher(func(string) string { return host })
	req := httparchive.NewRequest("GET", "www.example.com:"+port, "/stream", nil, nil)

	resp := f.Fetch(req, nil)
	if resp == nil {
		t.Fatal("Fetch() = nil, want response")
	}
	want := [][]byte{[]byte("hello"), []byte(", chunk")}
	if diff := cmp.Diff(want, resp.Chunks); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}
	if got := resp.Headers; len(got) == 0 {
		t.Fatal("response headers empty")
	}
}

func TestLiveFetcherSendsBody(t *testing.T) {
	raw := "HTTP/1.1 201 Created\r\nContent-Length: 0\r\n\r\n"
	addr, requests := rawOrigin(t, raw)
	host, port, _ := net.SplitHostPort(addr)

	f := NewLiveFetcher(func(string) string { return host })
	body := []byte(`{"name":"x"}`)
	req := httparchive.NewRequest("POST", "api.example.com:"+port, "/v1/items", body, nil)

	resp := f.Fetch(req, nil)
	if resp == nil {
		t.Fatal("Fetch() = nil, want response")
	}
	if resp.Status != 201 {
		t.Fatalf("status = %d, want 201", resp.Status)
	}

	sent := <-requests
	if !strings.Contains(sent, fmt.Sprintf("Content-Length: %d", len(body))) {
		t.Fatalf("request missing Content-Length: %q", sent)
	}
}
