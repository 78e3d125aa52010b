package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKeyLive(t *testing.T) {
	t.Parallel()

	plaintext, prefix, hash, err := GenerateKey(KeyEnvironmentLive)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(plaintext, "sk_live_"))
	require.Len(t, plaintext, len("sk_live_")+32)
	require.Equal(t, plaintext[:PrefixLength], prefix)
	require.NotContains(t, hash, plaintext)

	require.True(t, VerifyKey(plaintext, hash))
	require.False(t, VerifyKey(plaintext+"x", hash))
}

func TestGenerateKeyTest(t *testing.T) {
	t.Parallel()

	plaintext, prefix, _, err := GenerateKey(KeyEnvironmentTest)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plaintext, "sk_test_"))
	require.Len(t, prefix, PrefixLength)
}

func TestGenerateKeyInvalidEnvironment(t *testing.T) {
	t.Parallel()

	_, _, _, err := GenerateKey("staging")
	require.Error(t, err)
}

func TestGenerateKeyUnique(t *testing.T) {
	t.Parallel()

	first, _, _, err := GenerateKey(KeyEnvironmentLive)
	require.NoError(t, err)
	second, _, _, err := GenerateKey(KeyEnvironmentLive)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	require.True(t, VerifyPassword("hunter2hunter2", hash))
	require.False(t, VerifyPassword("hunter2", hash))
}
