package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtls/vmess-core/common/log"
)

func TestNewWrapsMessageAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := New("failed to do thing").Base(cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "failed to do thing")
	require.Contains(t, err.Error(), "boom")
}

func TestCauseUnwrapsToRoot(t *testing.T) {
	root := errors.New("root cause")
	wrapped := New("middle").Base(New("outer").Base(root))

	require.Equal(t, root, Cause(wrapped))
}

func TestAtSeverityChangesGetSeverity(t *testing.T) {
	err := New("warn me").AtWarning()
	require.Equal(t, err.Severity(), GetSeverity(err))
	require.Equal(t, log.Severity_Warning, GetSeverity(err))
}

func TestWithKindMatchesItsOwnSentinelViaErrorsIs(t *testing.T) {
	err := New("bad resp_v").WithKind(KindInvalidData)

	require.ErrorIs(t, err, InvalidData)
	require.NotErrorIs(t, err, WriteZero)
	require.NotErrorIs(t, err, UnexpectedEof)
	require.NotErrorIs(t, err, Unsupported)
	require.Equal(t, KindInvalidData, GetKind(err))
}

func TestUntaggedErrorMatchesNoKindSentinel(t *testing.T) {
	err := New("plain failure")

	require.NotErrorIs(t, err, InvalidData)
	require.NotErrorIs(t, err, WriteZero)
	require.Equal(t, KindUnknown, GetKind(err))
}

func TestWithKindSurvivesWrapping(t *testing.T) {
	inner := New("short read").WithKind(KindUnexpectedEof)
	outer := New("failed to read chunk length").Base(inner)

	require.ErrorIs(t, outer, UnexpectedEof)
	require.Equal(t, KindUnknown, GetKind(outer))
}
