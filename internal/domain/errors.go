package domain

import "errors"

// ErrorKind labels terminal task failures and request rejections so the
// status API surfaces a stable machine-readable cause regardless of the
// remote provider's own vocabulary.
type ErrorKind string

const (
	KindInvalidParameter      ErrorKind = "invalid_parameter"
	KindUnsupportedFormat     ErrorKind = "unsupported_format"
	KindSubmissionRejected    ErrorKind = "submission_rejected"
	KindRemoteGenerationError ErrorKind = "remote_generation_failed"
	KindPollingExhausted      ErrorKind = "polling_exhausted"
	KindTimeout               ErrorKind = "timeout"
	KindNotFound              ErrorKind = "not_found"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTaskTerminal      = errors.New("task already terminal")
)
