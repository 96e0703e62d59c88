package ledgeridx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOwnerMismatch    = errors.New("owner mismatch")
	ErrTooShort         = errors.New("too short")
	ErrDeprecatedFormat = errors.New("deprecated format")
	ErrUnknownVariant   = errors.New("unknown variant")
	ErrMalformedSection = errors.New("malformed variable-length section")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrFetchTimeout     = errors.New("fetch timed out")
	ErrNotReady         = errors.New("not ready: no successful load yet")
)

// DecodeError describes a record that could not be turned into an entity.
type DecodeError struct {
	Key      Pubkey
	Category Category
	Data     []byte
	Off      int
	Err      error
	Msg      string
}

func decodeErrf(data []byte, off int, err error, format string, args ...any) *DecodeError {
	return &DecodeError{Data: data, Off: off, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	const prefixLen = 64
	const suffixLen = 32

	var buf strings.Builder
	buf.WriteString(e.Category.String())
	if !e.Key.IsZero() {
		buf.WriteByte('/')
		buf.WriteString(e.Key.String())
	}
	buf.WriteString(": ")
	if e.Msg != "" {
		buf.WriteString(e.Msg)
		buf.WriteString(": ")
	}
	if e.Err != nil {
		buf.WriteString(e.Err.Error())
	}
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		fmt.Fprintf(&buf, " @%d: (%d) %x", e.Off, n, e.Data)
	} else {
		fmt.Fprintf(&buf, " @%d: (%d) %x...%x", e.Off, n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	return buf.String()
}

// Reason returns a short label of the error class, used for metrics.
func (e *DecodeError) Reason() string {
	return decodeErrorReason(e.Err)
}

func decodeErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrOwnerMismatch):
		return "owner_mismatch"
	case errors.Is(err, ErrTooShort):
		return "too_short"
	case errors.Is(err, ErrDeprecatedFormat):
		return "deprecated"
	case errors.Is(err, ErrUnknownVariant):
		return "unknown_variant"
	case errors.Is(err, ErrMalformedSection):
		return "malformed"
	default:
		return "other"
	}
}

// FetchError reports a failed bulk fetch of one program's accounts.
type FetchError struct {
	Category Category
	Program  Pubkey
	Err      error
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	if errors.Is(e.Err, ErrFetchTimeout) {
		return []error{e.Err}
	}
	return []error{ErrFetchFailed, e.Err}
}

func (e *FetchError) Error() string {
	var buf strings.Builder
	buf.WriteString("fetching ")
	buf.WriteString(e.Category.String())
	buf.WriteString(" accounts (")
	buf.WriteString(e.Program.String())
	buf.WriteString("): ")
	if e.Err != nil {
		buf.WriteString(e.Err.Error())
	} else {
		buf.WriteString(ErrFetchFailed.Error())
	}
	return buf.String()
}
