package httparchive

import "strings"

// Header is a single response header. Responses keep headers as an ordered
// list so replayed responses preserve the wire order the origin used.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ArchivedResponse is the persisted unit: status line fields, ordered
// headers and the body as the raw chunk sequence it arrived in. Chunk
// payloads keep whatever content-encoding the origin applied.
type ArchivedResponse struct {
	Proto   string   `json:"proto"`
	Status  int      `json:"status"`
	Reason  string   `json:"reason"`
	Headers []Header `json:"headers,omitempty"`
	Chunks  [][]byte `json:"chunks"`
}

// Body returns the chunks concatenated in delivery order.
func (r *ArchivedResponse) Body() []byte {
	if len(r.Chunks) == 1 {
		return r.Chunks[0]
	}
	var n int
	for _, c := range r.Chunks {
		n += len(c)
	}
	body := make([]byte, 0, n)
	for _, c := range r.Chunks {
		body = append(body, c...)
	}
	return body
}

// GetHeader returns the first value for name, case-insensitive, or "".
func (r *ArchivedResponse) GetHeader(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// SetHeader replaces the first header matching name or appends a new one.
func (r *ArchivedResponse) SetHeader(name, value string) {
	for i, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}
