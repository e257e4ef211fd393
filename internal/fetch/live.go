package fetch

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"sort"
	"strconv"
	"strings"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// LiveResponse is the transient result of a real network fetch: the status
// line fields, the response headers in wire order, and the body as its raw
// chunk sequence. It exists only to be turned into an ArchivedResponse.
type LiveResponse struct {
	Proto   string
	Status  int
	Reason  string
	Headers []httparchive.Header
	Chunks  [][]byte
}

// LiveFetcher performs real HTTP fetches through an injected resolver.
// Every failure is soft: logged with full detail and reported as a nil
// response, never propagated.
type LiveFetcher struct {
	resolve Resolver
}

// NewLiveFetcher returns a LiveFetcher using resolve for DNS.
func NewLiveFetcher(resolve Resolver) *LiveFetcher {
	return &LiveFetcher{resolve: resolve}
}

// Fetch resolves the request's host, issues the request over a fresh
// connection and drains the response body into chunks. Returns nil when
// resolution fails or anything goes wrong during connect, send or receive.
func (f *LiveFetcher) Fetch(req *httparchive.Request, headers map[string]string) *LiveResponse {
	slog.Debug("live fetch", "method", req.Method, "host", req.Host, "path", req.Path)

	host, port := splitHostPort(req.Host)
	addr := f.resolve(host)
	if addr == "" {
		slog.Error("unable to resolve host", "host", host)
		return nil
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(addr, port))
	if err != nil {
		slog.Error("could not connect", "request", req.String(), "addr", addr, "error", err)
		return nil
	}

	resp, err := roundTrip(conn, req, headers)
	if err != nil {
		slog.Error("could not fetch", "request", req.String(), "error", err)
		return nil
	}
	return resp
}

// roundTrip writes the request and reads the response off conn. The
// connection is handed to the chunk reader, which closes it.
func roundTrip(conn net.Conn, req *httparchive.Request, headers map[string]string) (*LiveResponse, error) {
	if err := writeRequest(conn, req, headers); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send request: %w", err)
	}

	br := bufio.NewReader(conn)
	tp := textproto.NewReader(br)

	statusLine, err := tp.ReadLine()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read status line: %w", err)
	}
	proto, status, reason, err := parseStatusLine(statusLine)
	if err != nil {
		conn.Close()
		return nil, err
	}
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		conn.Close()
		return nil, fmt.Errorf("read headers: %w", err)
	}

	stream := newConnStream(conn, br, mimeHeader)
	chunks, err := ReadChunks(stream)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &LiveResponse{
		Proto:   proto,
		Status:  status,
		Reason:  reason,
		Headers: orderHeaders(mimeHeader),
		Chunks:  chunks,
	}, nil
}

func writeRequest(conn net.Conn, req *httparchive.Request, headers map[string]string) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.Path)

	names := make([]string, 0, len(headers))
	hasHost := false
	for name := range headers {
		if strings.EqualFold(name, "Host") {
			hasHost = true
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if !hasHost {
		fmt.Fprintf(&b, "Host: %s\r\n", req.Host)
	}
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\r\n", name, headers[name])
	}
	if len(req.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(req.Body))
	}
	b.WriteString("\r\n")
	b.Write(req.Body)

	_, err := conn.Write(b.Bytes())
	return err
}

func parseStatusLine(line string) (proto string, status int, reason string, err error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok {
		return "", 0, "", fmt.Errorf("malformed status line %q", line)
	}
	code, reason, _ := strings.Cut(rest, " ")
	status, err = strconv.Atoi(code)
	if err != nil {
		return "", 0, "", fmt.Errorf("malformed status code in %q", line)
	}
	return proto, status, reason, nil
}

func orderHeaders(mh textproto.MIMEHeader) []httparchive.Header {
	names := make([]string, 0, len(mh))
	for name := range mh {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []httparchive.Header
	for _, name := range names {
		for _, v := range mh[name] {
			out = append(out, httparchive.Header{Name: name, Value: v})
		}
	}
	return out
}

func splitHostPort(hostport string) (host, port string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, "80"
	}
	return host, port
}

// connStream adapts a response body on a live connection to the
// ResponseStream capability the chunk reader consumes.
type connStream struct {
	conn          net.Conn
	br            *bufio.Reader
	chunked       bool
	contentLength int64
}

func newConnStream(conn net.Conn, br *bufio.Reader, mh textproto.MIMEHeader) *connStream {
	s := &connStream{conn: conn, br: br, contentLength: -1}
	for _, te := range mh.Values("Transfer-Encoding") {
		if strings.EqualFold(strings.TrimSpace(te), "chunked") {
			s.chunked = true
		}
	}
	if cl := mh.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			s.contentLength = n
		}
	}
	return s
}

func (s *connStream) Chunked() bool { return s.chunked }

func (s *connStream) ReadLine() (string, error) {
	line, err := s.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *connStream) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *connStream) ReadAll() ([]byte, error) {
	if s.contentLength >= 0 {
		return s.ReadFull(int(s.contentLength))
	}
	body, err := io.ReadAll(s.br)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *connStream) Close() error { return s.conn.Close() }
