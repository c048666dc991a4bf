package orgs

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateInviteToken_AndValidateFormatAndHash(t *testing.T) {
	token, hash, err := GenerateInviteToken()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(token, inviteTokenPrefix))
	require.True(t, ValidateInviteTokenFormat(token))
	require.Len(t, hash, sha256.Size)
	require.Equal(t, HashInviteToken(token), hash)
}

func TestValidateInviteTokenFormat_Invalid(t *testing.T) {
	require.False(t, ValidateInviteTokenFormat(""))
	require.False(t, ValidateInviteTokenFormat("nope_abc"))
	require.False(t, ValidateInviteTokenFormat("tdi_%%%not-base64%%%"))
	require.False(t, ValidateInviteTokenFormat("tdi_c2hvcnQ"))
}
