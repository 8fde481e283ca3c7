// Package isolation runs document parsing behind a boundary that bounds its
// concurrency, wall-clock time and (in process mode) memory.
package isolation

import (
	"errors"
	"strings"

	"github.com/markdave123-py/docingest/internal/core/extractor"
)

// Kind classifies where an isolated run failed.
type Kind string

const (
	KindSpawn    Kind = "spawn"    // worker could not be started
	KindExit     Kind = "exit"     // child exited abnormally without a usable status
	KindStatus   Kind = "status"   // status line missing or malformed
	KindTimeout  Kind = "timeout"  // wall-clock limit hit, worker killed
	KindTempFile Kind = "tempfile" // result handoff file unusable
	KindWorker   Kind = "worker"   // worker ran and reported a processing failure
)

// Error is a failure of the isolation boundary itself, or a failure the worker
// reported across it. Permanent carries the worker's own classification.
type Error struct {
	Kind      Kind
	Msg       string
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("isolation ")
	sb.WriteString(string(e.Kind))
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsPermanent reports whether err can never succeed on retry, judged by type only.
func IsPermanent(err error) bool {
	var (
		perm        *extractor.PermanentError
		unsupported *extractor.UnsupportedFormatError
		iso         *Error
	)
	switch {
	case errors.As(err, &perm), errors.As(err, &unsupported):
		return true
	case errors.As(err, &iso):
		return iso.Permanent
	}
	return false
}
