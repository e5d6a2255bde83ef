// Package errors is a drop-in replacement for Golang lib 'errors', shared
// by every vmess package so protocol failures carry severity and a
// wrapped cause instead of bare strings.
package errors

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/xtls/vmess-core/common/log"
)

const trim = len("github.com/xtls/vmess-core/")

type hasInnerError interface {
	Unwrap() error
}

type hasSeverity interface {
	Severity() log.Severity
}

// Kind classifies the sentinel error conditions this module's callers
// may need to distinguish programmatically instead of string-matching
// Error's message. The zero value, KindUnknown, compares equal to
// nothing.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnexpectedEof marks a transport closing before the bytes a
	// read was promised were all delivered.
	KindUnexpectedEof
	// KindInvalidData marks a message that parsed but failed a
	// protocol-level check: a bad resp_v byte, a dynamic-port
	// reassignment, a chunk length over the ceiling, or an AEAD tag
	// that failed to authenticate.
	KindInvalidData
	// KindWriteZero marks a transport accepting 0 bytes on a write
	// that still had bytes left to send.
	KindWriteZero
	// KindUnsupported marks a security kind or option this core does
	// not implement.
	KindUnsupported
)

// kindSentinel is the error value returned by UnexpectedEof,
// InvalidData, WriteZero, and Unsupported below, for use with
// errors.Is. It never appears as the error returned from this
// package's own constructors; those are *Error, whose Is method
// matches it by Kind.
type kindSentinel struct{ kind Kind }

func (k *kindSentinel) Error() string { return "errors: sentinel for kind " + k.kind.String() }

// String names a Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindUnexpectedEof:
		return "UnexpectedEof"
	case KindInvalidData:
		return "InvalidData"
	case KindWriteZero:
		return "WriteZero"
	case KindUnsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Sentinels usable with errors.Is to test the Kind of an *Error
// without string-matching its message, e.g.
// errors.Is(err, errors.InvalidData).
var (
	UnexpectedEof = &kindSentinel{kind: KindUnexpectedEof}
	InvalidData   = &kindSentinel{kind: KindInvalidData}
	WriteZero     = &kindSentinel{kind: KindWriteZero}
	Unsupported   = &kindSentinel{kind: KindUnsupported}
)

// Error is an error object with an underlying, optionally wrapped error.
type Error struct {
	message  []interface{}
	caller   string
	inner    error
	severity log.Severity
	kind     Kind
}

// Error implements error.Error().
func (err *Error) Error() string {
	builder := strings.Builder{}
	if len(err.caller) > 0 {
		builder.WriteString(err.caller)
		builder.WriteString(": ")
	}

	builder.WriteString(concat(err.message...))

	if err.inner != nil {
		builder.WriteString(" > ")
		builder.WriteString(err.inner.Error())
	}

	return builder.String()
}

// Unwrap implements hasInnerError.Unwrap()
func (err *Error) Unwrap() error {
	return err.inner
}

// Is reports whether target is one of this package's Kind sentinels
// (UnexpectedEof, InvalidData, WriteZero, Unsupported) and matches
// err's own Kind, so that errors.Is(err, errors.InvalidData) works
// without the caller needing a type assertion. A KindUnknown error
// never matches any sentinel.
func (err *Error) Is(target error) bool {
	sentinel, ok := target.(*kindSentinel)
	if !ok {
		return false
	}
	return err.kind != KindUnknown && err.kind == sentinel.kind
}

// WithKind tags this error with a Kind, so callers can later recover
// it with Kind or match it with errors.Is against one of this
// package's sentinels.
func (err *Error) WithKind(k Kind) *Error {
	err.kind = k
	return err
}

// Kind returns the Kind this error was tagged with, or KindUnknown if
// none was set.
func (err *Error) Kind() Kind {
	return err.kind
}

// Base sets the wrapped cause of this error.
func (err *Error) Base(e error) *Error {
	err.inner = e
	return err
}

func (err *Error) atSeverity(s log.Severity) *Error {
	err.severity = s
	return err
}

// Severity returns the severity of this error, deferring to the
// wrapped cause's severity when it is more severe.
func (err *Error) Severity() log.Severity {
	if err.inner == nil {
		return err.severity
	}

	if s, ok := err.inner.(hasSeverity); ok {
		if inner := s.Severity(); inner < err.severity {
			return inner
		}
	}

	return err.severity
}

// AtDebug sets the severity to debug.
func (err *Error) AtDebug() *Error { return err.atSeverity(log.Severity_Debug) }

// AtInfo sets the severity to info.
func (err *Error) AtInfo() *Error { return err.atSeverity(log.Severity_Info) }

// AtWarning sets the severity to warning.
func (err *Error) AtWarning() *Error { return err.atSeverity(log.Severity_Warning) }

// AtError sets the severity to error.
func (err *Error) AtError() *Error { return err.atSeverity(log.Severity_Error) }

// String returns the string representation of this error.
func (err *Error) String() string { return err.Error() }

// New returns a new error object with message formed from the given arguments.
func New(msg ...interface{}) *Error {
	pc, _, _, _ := runtime.Caller(1)
	details := runtime.FuncForPC(pc).Name()
	if len(details) >= trim {
		details = details[trim:]
	}
	if i := strings.Index(details, "."); i > 0 {
		details = details[:i]
	}
	return &Error{
		message:  msg,
		severity: log.Severity_Info,
		caller:   details,
	}
}

// LogWarning records msg at warning severity through the common/log sink.
func LogWarning(msg ...interface{}) {
	doLog(nil, log.Severity_Warning, msg...)
}

// LogWarningInner records msg at warning severity, wrapping inner.
func LogWarningInner(inner error, msg ...interface{}) {
	doLog(inner, log.Severity_Warning, msg...)
}

// LogDebug records msg at debug severity through the common/log sink.
func LogDebug(msg ...interface{}) {
	doLog(nil, log.Severity_Debug, msg...)
}

func doLog(inner error, severity log.Severity, msg ...interface{}) {
	pc, _, _, _ := runtime.Caller(2)
	details := runtime.FuncForPC(pc).Name()
	if len(details) >= trim {
		details = details[trim:]
	}
	if i := strings.Index(details, "."); i > 0 {
		details = details[:i]
	}
	err := &Error{
		message:  msg,
		severity: severity,
		caller:   details,
		inner:    inner,
	}
	log.Record(&log.GeneralMessage{
		Severity: GetSeverity(err),
		Content:  err,
	})
}

// Cause returns the root cause of this error.
func Cause(err error) error {
	if err == nil {
		return nil
	}
	for {
		inner, ok := err.(hasInnerError)
		if !ok {
			break
		}
		next := inner.Unwrap()
		if next == nil {
			break
		}
		err = next
	}
	return err
}

// GetSeverity returns the severity of err, including wrapped causes.
func GetSeverity(err error) log.Severity {
	if s, ok := err.(hasSeverity); ok {
		return s.Severity()
	}
	return log.Severity_Info
}

type hasKind interface {
	Kind() Kind
}

// GetKind returns the Kind err was tagged with via WithKind, or
// KindUnknown if err isn't an *Error or was never tagged.
func GetKind(err error) Kind {
	if k, ok := err.(hasKind); ok {
		return k.Kind()
	}
	return KindUnknown
}

func concat(v ...interface{}) string {
	parts := make([]string, len(v))
	for i, p := range v {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, "")
}
