package isolation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// statusLine is the only thing a worker process writes to stdout.
// The processing result travels through the temp file instead.
type statusLine struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

func writeStatus(w io.Writer, s statusLine) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

// parseStatus decodes the last non-empty line of the worker's stdout.
func parseStatus(out []byte) (statusLine, error) {
	var s statusLine

	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 {
		return s, fmt.Errorf("empty status output")
	}
	if err := json.Unmarshal(last, &s); err != nil {
		return s, fmt.Errorf("decode status line %q: %w", truncate(last, 200), err)
	}
	return s, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// cappedBuffer keeps at most limit bytes and discards the rest.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte { return c.buf.Bytes() }
