// Package proxy is the HTTP front-end: every inbound request is converted
// to an archive key and dispatched through the fetch core, so whether the
// response comes off the network or out of the archive depends only on the
// current fetch mode.
package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/AlexxNica/web-page-replay/internal/fetch"
	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// hop-by-hop headers are a property of the recorded connection, not the
// replayed one; net/http re-frames the response itself.
var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Server serves HTTP traffic through a Fetcher.
type Server struct {
	fetcher fetch.Fetcher
	srv     *http.Server
}

// New builds a proxy server listening on addr.
func New(addr string, fetcher fetch.Fetcher) *Server {
	s := &Server{fetcher: fetcher}
	s.srv = &http.Server{Addr: addr, Handler: requestLogger(http.HandlerFunc(s.serve))}
	return s
}

// Handler exposes the proxy handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks serving traffic until Shutdown.
func (s *Server) ListenAndServe() error {
	slog.Info("proxy listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("request body read failed", "error", err)
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	req := httparchive.NewRequest(r.Method, r.Host, r.URL.RequestURI(), body, headers)
	resp := s.fetcher.Fetch(req, headers)
	if resp == nil {
		http.Error(w, fmt.Sprintf("no response for %s", req), http.StatusNotFound)
		return
	}

	for _, h := range resp.Headers {
		if hopByHop[http.CanonicalHeaderKey(h.Name)] || strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		w.Header().Add(h.Name, h.Value)
	}
	respBody := resp.Body()
	w.Header().Set("Content-Length", strconv.Itoa(len(respBody)))
	w.WriteHeader(resp.Status)
	if _, err := w.Write(respBody); err != nil {
		slog.Debug("response write failed", "request", req.String(), "error", err)
	}
}
