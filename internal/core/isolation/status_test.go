package isolation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    statusLine
		wantErr bool
	}{
		{name: "ok", out: `{"ok":true}` + "\n", want: statusLine{OK: true}},
		{name: "failure", out: `{"ok":false,"error":"corrupt pdf","permanent":true}`, want: statusLine{Error: "corrupt pdf", Permanent: true}},
		{name: "last line wins", out: "noise\n" + `{"ok":true}` + "\n\n", want: statusLine{OK: true}},
		{name: "empty", out: "", wantErr: true},
		{name: "garbage", out: "segmentation fault\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStatus([]byte(tt.out))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteStatus_SingleLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, statusLine{OK: false, Error: "line one\nline two"}))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))

	got, err := parseStatus(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got.Error)
}

func TestCappedBuffer(t *testing.T) {
	c := &cappedBuffer{limit: 4}
	n, err := c.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = c.Write([]byte("gh"))
	assert.Equal(t, "abcd", string(c.Bytes()))
}

func TestWorkerArgs_RoundTrip(t *testing.T) {
	in := WorkerArgs{
		FilePath: "/data/a b.pdf", MimeType: "application/pdf", OutputPath: "/tmp/out.json",
		MemoryLimit: 1 << 29, ChunkSize: 800, ChunkOverlap: 100, PdfToText: "/usr/bin/pdftotext", PdfInfo: "",
	}

	out, err := ParseWorkerArgs(in.Args())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
