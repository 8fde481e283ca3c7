package extractor

import "fmt"

// UnsupportedFormatError is returned for mime types no parser handles.
// It is permanent: retrying the same file can never succeed.
type UnsupportedFormatError struct {
	MimeType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %q", e.MimeType)
}

// PermanentError marks a parsing failure caused by the input itself
// (missing file, unreadable file, corrupt content).
type PermanentError struct {
	Msg string
	Err error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

func permanent(err error, format string, args ...any) *PermanentError {
	return &PermanentError{Msg: fmt.Sprintf(format, args...), Err: err}
}
