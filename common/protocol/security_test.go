package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtls/vmess-core/common/errors"
)

func TestSecurityTypeFromByteAcceptsKnownKinds(t *testing.T) {
	s, err := SecurityTypeFromByte(0x03)
	require.NoError(t, err)
	require.Equal(t, SecurityTypeAES128GCM, s)
}

func TestSecurityTypeFromByteRejectsUnknownKind(t *testing.T) {
	_, err := SecurityTypeFromByte(0x09)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.Unsupported)
}

func TestSecurityTypeOverheadIsZeroForNone(t *testing.T) {
	require.Equal(t, 0, SecurityTypeNone.Overhead())
	require.Equal(t, 16, SecurityTypeAES128GCM.Overhead())
	require.Equal(t, 16, SecurityTypeChacha20Poly1305.Overhead())
}
