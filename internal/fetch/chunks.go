package fetch

import (
	"fmt"
	"strconv"
	"strings"
)

// ResponseStream is the narrow view of a live response body the chunk
// reader needs. Keeping it this small lets the reader run against a
// synthetic stream in tests instead of a real socket.
type ResponseStream interface {
	// Chunked reports whether the body uses chunked transfer encoding.
	Chunked() bool
	// ReadLine returns the next line with the trailing CRLF removed.
	ReadLine() (string, error)
	// ReadFull reads exactly n bytes.
	ReadFull(n int) ([]byte, error)
	// ReadAll reads the remaining body to completion.
	ReadAll() ([]byte, error)
	Close() error
}

// IncompleteReadError is returned when chunked framing breaks mid-body. It
// carries every chunk collected before the failure.
type IncompleteReadError struct {
	Chunks [][]byte
	Line   string
}

func (e *IncompleteReadError) Error() string {
	return fmt.Sprintf("incomplete chunked read after %d chunks: bad size line %q", len(e.Chunks), e.Line)
}

// ReadChunks drains a response body into its raw chunk sequence. A
// non-chunked body yields a single chunk; a chunked body yields one chunk
// per segment with size lines, chunk extensions and framing CRLFs removed
// and any trailers discarded. Payload bytes are never reencoded, so a
// compressed body stays compressed. The stream is closed before returning,
// success or failure.
func ReadChunks(rs ResponseStream) ([][]byte, error) {
	defer rs.Close()

	if !rs.Chunked() {
		body, err := rs.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return [][]byte{body}, nil
	}

	var chunks [][]byte
	for {
		line, err := rs.ReadLine()
		if err != nil {
			return nil, &IncompleteReadError{Chunks: chunks, Line: line}
		}
		size, ok := parseChunkSize(line)
		if !ok {
			return nil, &IncompleteReadError{Chunks: chunks, Line: line}
		}
		if size == 0 {
			break
		}
		chunk, err := rs.ReadFull(size)
		if err != nil {
			return nil, fmt.Errorf("read chunk of %d bytes: %w", size, err)
		}
		chunks = append(chunks, chunk)
		// skip the CRLF terminating the chunk
		if _, err := rs.ReadFull(2); err != nil {
			return nil, fmt.Errorf("read chunk terminator: %w", err)
		}
	}

	// Discard trailers.
	for {
		line, err := rs.ReadLine()
		if err != nil || line == "" {
			break
		}
	}
	return chunks, nil
}

// parseChunkSize parses a chunk-size line: hex digits optionally followed
// by a ";"-delimited chunk extension, which is stripped unexamined.
func parseChunkSize(line string) (int, bool) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	n, err := strconv.ParseInt(line, 16, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return int(n), true
}
