package objectclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/extractor"
)

// ErrStorageNotConfigured is returned for object URLs when no ObjectClient is
// available. It arrives wrapped in an *extractor.PermanentError.
var ErrStorageNotConfigured = errors.New("object storage not configured")

// SourceFetcher turns a document's file path into a local file the parsers can open.
type SourceFetcher struct {
	client  core.ObjectClient
	tempDir string
	logger  *slog.Logger
}

// NewSourceFetcher accepts a nil client, in which case only local paths resolve.
func NewSourceFetcher(client core.ObjectClient, tempDir string) *SourceFetcher {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &SourceFetcher{
		client:  client,
		tempDir: tempDir,
		logger:  slog.Default().With("component", "source-fetcher"),
	}
}

// Localize returns a local path for filePath and a release func that removes
// any temporary copy. Local paths are returned unchanged.
func (f *SourceFetcher) Localize(ctx context.Context, filePath string) (string, func(), error) {
	bucket, key, ok := ParseObjectURL(filePath)
	if !ok {
		return filePath, func() {}, nil
	}
	if f.client == nil {
		return "", nil, &extractor.PermanentError{Msg: "fetch " + filePath, Err: ErrStorageNotConfigured}
	}

	tmp, err := os.CreateTemp(f.tempDir, "docsrc-*"+path.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp source: %w", err)
	}
	release := func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("failed to remove temp source", "path", tmp.Name(), "error", err)
		}
	}

	n, err := f.client.DownloadFile(ctx, bucket, key, tmp)
	if err != nil {
		release()
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", nil, &extractor.PermanentError{Msg: fmt.Sprintf("source object not found: s3://%s/%s", bucket, key), Err: err}
		}
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("close temp source: %w", err)
	}

	f.logger.DebugContext(ctx, "source downloaded", "bucket", bucket, "key", key, "bytes", n)
	return tmp.Name(), release, nil
}

// ParseObjectURL recognises s3://bucket/key and virtual-hosted style
// https://bucket.s3.<region>.amazonaws.com/key URLs.
func ParseObjectURL(u string) (bucket, key string, ok bool) {
	if rest, found := strings.CutPrefix(u, "s3://"); found {
		bucket, key, _ = strings.Cut(rest, "/")
		return bucket, key, bucket != "" && key != ""
	}

	if !strings.HasPrefix(u, "https://") {
		return "", "", false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", "", false
	}
	host := parsed.Hostname()
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return "", "", false
	}
	bucket, _, found := strings.Cut(host, ".s3")
	if !found {
		return "", "", false
	}
	key = strings.TrimPrefix(parsed.Path, "/")
	return bucket, key, bucket != "" && key != ""
}
