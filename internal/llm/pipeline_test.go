package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	system string
	user   string
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []call
	reply func(system, user string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{system: system, user: user})
	f.mu.Unlock()
	if f.reply == nil {
		return "", nil
	}
	return f.reply(system, user)
}

func (f *fakeCompleter) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// wordTokenizer treats each whitespace-separated word as one token.
type wordTokenizer struct {
	vocab []string
}

func (w *wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	out := make([]int, len(words))
	for i, word := range words {
		w.vocab = append(w.vocab, word)
		out[i] = len(w.vocab) - 1
	}
	return out
}

func (w *wordTokenizer) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = w.vocab[tok]
	}
	return strings.Join(words, " ")
}

func testPrompts() Prompts {
	return Prompts{
		Detail:   "detail-prompt",
		Tags:     "tag-prompt from {tags}",
		Language: "translate into {language}",
	}
}

func newTestPipeline(c *fakeCompleter, maxTokens int) *Pipeline {
	return NewPipeline(c, &wordTokenizer{}, Config{Prompts: testPrompts(), MaxTokens: maxTokens}, zap.NewNop())
}

func TestTruncateToBudgetKeepsExactlyMaxTokens(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeCompleter{}, 3)
	require.Equal(t, "one two three", p.TruncateToBudget("one two three four five"))
	require.Equal(t, "one two", p.TruncateToBudget("one two"))
}

func TestTruncateToBudgetDisabled(t *testing.T) {
	t.Parallel()

	p := NewPipeline(&fakeCompleter{}, nil, Config{MaxTokens: 1}, nil)
	require.Equal(t, "a b c", p.TruncateToBudget("a b c"))

	p = newTestPipeline(&fakeCompleter{}, 0)
	require.Equal(t, "a b c", p.TruncateToBudget("a b c"))
}

func TestRunStageSkipsEmptyInputs(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: func(string, string) (string, error) { return "x", nil }}
	p := newTestPipeline(c, 10)

	_, ok := p.RunStage(context.Background(), "", "text")
	require.False(t, ok)
	_, ok = p.RunStage(context.Background(), "prompt", "")
	require.False(t, ok)
	require.Empty(t, c.Calls())
}

func TestRunStageErrorAndEmpty(t *testing.T) {
	t.Parallel()

	failing := &fakeCompleter{reply: func(string, string) (string, error) { return "", errors.New("rate limited") }}
	_, ok := newTestPipeline(failing, 10).RunStage(context.Background(), "p", "t")
	require.False(t, ok)

	empty := &fakeCompleter{}
	_, ok = newTestPipeline(empty, 10).RunStage(context.Background(), "p", "t")
	require.False(t, ok)
}

func TestRunStageTruncatesUserText(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: func(string, string) (string, error) { return "ok", nil }}
	out, ok := newTestPipeline(c, 2).RunStage(context.Background(), "p", "alpha beta gamma")
	require.True(t, ok)
	require.Equal(t, "ok", out)
	require.Equal(t, []call{{system: "p", user: "alpha beta"}}, c.Calls())
}

func TestSelectTagsParsing(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: func(string, string) (string, error) { return " AI,  ,Productivity ,", nil }}
	p := newTestPipeline(c, 0)

	tags := p.SelectTags(context.Background(), "raw", []string{"AI", "Productivity"})
	require.Equal(t, []string{"AI", "Productivity"}, tags)
	require.Equal(t, "tag-prompt from AI, Productivity", c.Calls()[0].system)
}

func TestSelectTagsAbsentResult(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeCompleter{}, 0)
	tags := p.SelectTags(context.Background(), "raw", nil)
	require.NotNil(t, tags)
	require.Empty(t, tags)
}

func TestTranslateEnglishShortCircuit(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: func(string, string) (string, error) { return "never", nil }}
	p := newTestPipeline(c, 0)

	for _, lang := range []string{"English", "english (US)", "British ENGLISH"} {
		out, ok := p.Translate(context.Background(), lang, "# Title **bold**")
		require.True(t, ok)
		require.Equal(t, "# Title **bold**", out)
	}
	require.Empty(t, c.Calls())
}

func TestTranslateStripsMarkdownUnlessRawIsMarkdown(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: func(string, string) (string, error) { return "## Titre\n**gras** texte", nil }}
	p := newTestPipeline(c, 0)

	out, ok := p.Translate(context.Background(), "French", "plain text")
	require.True(t, ok)
	require.Equal(t, "Titre\ngras texte", out)
	require.Equal(t, "translate into French", c.Calls()[0].system)

	out, ok = p.Translate(context.Background(), "French", "# Already markdown")
	require.True(t, ok)
	require.Equal(t, "## Titre\n**gras** texte", out)
}

func TestStripMarkdown(t *testing.T) {
	t.Parallel()

	require.Equal(t, "A\nB\nC d", StripMarkdown("### A\n## B\n# C **d**"))
	require.Equal(t, "#no-space", StripMarkdown("#no-space"))
}

func TestEnrichRunsEveryStage(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: func(system, _ string) (string, error) {
		switch {
		case system == "detail-prompt":
			return "", errors.New("detail down")
		case strings.HasPrefix(system, "tag-prompt"):
			return "AI, Productivity", nil
		case system == "translate into French":
			return "Bonjour", nil
		default:
			return "", nil
		}
	}}
	p := newTestPipeline(c, 0)

	out := p.Enrich(context.Background(), "Hello", []string{"English", "French", "German"}, []string{"AI"})
	require.Nil(t, out.Detail)
	require.Equal(t, []string{"AI", "Productivity"}, out.Tags)
	require.Len(t, out.Languages, 3)
	require.Equal(t, "Hello", *out.Languages["English"])
	require.Equal(t, "Bonjour", *out.Languages["French"])
	require.Nil(t, out.Languages["German"])
	// detail + tags + French + German; English is served locally.
	require.Len(t, c.Calls(), 4)
}
