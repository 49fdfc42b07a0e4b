package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tok, err := New("")
	require.NoError(t, err)

	text := "The quick brown fox jumps over the lazy dog."
	tokens := tok.Encode(text)
	require.NotEmpty(t, tokens)
	require.Equal(t, text, tok.Decode(tokens))
}

func TestPrefixDecode(t *testing.T) {
	t.Parallel()

	tok, err := New(DefaultEncoding)
	require.NoError(t, err)

	text := strings.Repeat("enrich ", 50)
	tokens := tok.Encode(text)
	require.Greater(t, len(tokens), 10)

	prefix := tok.Decode(tokens[:10])
	require.NotEmpty(t, prefix)
	require.True(t, strings.HasPrefix(text, prefix))
	require.Less(t, len(prefix), len(text))
}

func TestUnknownEncoding(t *testing.T) {
	t.Parallel()

	_, err := New("not_an_encoding")
	require.Error(t, err)
}
