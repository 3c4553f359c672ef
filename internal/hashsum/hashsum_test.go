package hashsum_test

import (
	"testing"

	"github.com/mirandadam/hsync/internal/hashsum"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Check it satisfies the interface expected by --checksum.
var _ pflag.Value = (*hashsum.Type)(nil)

func TestFinalizeHexInvariantToChunking(t *testing.T) {
	input := []byte("the quick brown fox jumps over the lazy dog")

	whole, err := hashsum.New(hashsum.SHA256)
	require.NoError(t, err)
	whole.Update(input)

	chunked, err := hashsum.New(hashsum.SHA256)
	require.NoError(t, err)
	for i := 0; i < len(input); i += 7 {
		end := i + 7
		if end > len(input) {
			end = len(input)
		}
		chunked.Update(input[i:end])
	}

	assert.Equal(t, whole.FinalizeHex(), chunked.FinalizeHex())
}

func TestKnownDigests(t *testing.T) {
	cases := []struct {
		algo hashsum.Type
		want string
	}{
		{hashsum.MD5, "d41d8cd98f00b204e9800998ecf8427e"},
		{hashsum.SHA1, "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{hashsum.SHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}
	for _, c := range cases {
		h, err := hashsum.New(c.algo)
		require.NoError(t, err)
		assert.Equal(t, c.want, h.FinalizeHex(), "empty input, algo %v", c.algo)
	}
}

func TestTypeSetAndString(t *testing.T) {
	var ty hashsum.Type
	require.NoError(t, ty.Set("SHA-1"))
	assert.Equal(t, hashsum.SHA1, ty)
	assert.Equal(t, "sha1", ty.String())

	require.NoError(t, ty.Set("md5"))
	assert.Equal(t, hashsum.MD5, ty)

	require.Error(t, ty.Set("crc32"))
}
