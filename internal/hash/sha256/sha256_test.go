package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)

	again, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestHasherVerify(t *testing.T) {
	t.Parallel()

	h := New()
	digest, err := h.Hash([]byte("<html></html>"))
	require.NoError(t, err)

	require.NoError(t, h.Verify([]byte("<html></html>"), digest))
	require.NoError(t, h.Verify([]byte("anything"), ""))
	require.ErrorContains(t, h.Verify([]byte("<html>changed</html>"), digest), "digest mismatch")
}
