// Package tokenizer adapts tiktoken BPE encodings to site.Tokenizer.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is used when no encoding name is configured.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// Tiktoken wraps a tiktoken encoding. The BPE ranks are embedded, so no
// network access is needed at startup.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding.
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode returns the token IDs for text.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode maps token IDs back to text.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
