// Package cueerr defines the abstract error kinds shared across the core,
// checked with errors.Is at each component boundary per the propagation
// policy in the error handling design.
package cueerr

import "errors"

var (
	ErrCaptureUnavailable   = errors.New("capture unavailable")
	ErrCaptureTransient     = errors.New("capture transient error")
	ErrResample             = errors.New("resample error")
	ErrTranscriberUnavailable = errors.New("transcriber unavailable")
	ErrTranscriberFailed    = errors.New("transcriber failed")
	ErrCueFileNotFound      = errors.New("cue file not found")
	ErrCueFileCorrupt       = errors.New("cue file corrupt")
	ErrLexiconCorrupt       = errors.New("lexicon corrupt")
	ErrPatternInvalid       = errors.New("pattern invalid")
	ErrPersistIO            = errors.New("persist io error")
	ErrChannelSendFailed    = errors.New("channel send failed")
	ErrAdvisorTimeout       = errors.New("advisor timeout")
	ErrAdvisorBadReply      = errors.New("advisor bad reply")
	ErrProtocolBadMessage   = errors.New("protocol bad message")
	ErrInvalidState         = errors.New("invalid state")
)
