// Package llm runs the multi-stage language-model enrichment of page text:
// detail extraction, tag selection and per-language translation.
package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/metrics"
	"github.com/JakeFAU/site-enricher/internal/site"
)

const (
	languagePlaceholder = "{language}"
	tagsPlaceholder     = "{tags}"
)

// Stage labels used for logging and metrics.
const (
	StageDetail    = "detail"
	StageTags      = "tags"
	StageTranslate = "translate"
	StageAdhoc     = "adhoc"
)

// Prompts holds the system prompt for each stage. An empty prompt disables
// its stage.
type Prompts struct {
	Detail   string
	Tags     string
	Language string
}

// Config tunes the pipeline.
type Config struct {
	Prompts Prompts
	// MaxTokens caps the user text sent to the model. Zero disables truncation.
	MaxTokens int
}

// Pipeline turns raw page text into EnrichedContent.
type Pipeline struct {
	completer site.Completer
	tokenizer site.Tokenizer
	cfg       Config
	logger    *zap.Logger
}

// NewPipeline wires a Pipeline. The tokenizer may be nil, which disables
// truncation.
func NewPipeline(completer site.Completer, tokenizer site.Tokenizer, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		completer: completer,
		tokenizer: tokenizer,
		cfg:       cfg,
		logger:    logger.Named("llm"),
	}
}

// TruncateToBudget keeps at most MaxTokens tokens of text.
func (p *Pipeline) TruncateToBudget(text string) string {
	if p.tokenizer == nil || p.cfg.MaxTokens <= 0 {
		return text
	}
	tokens := p.tokenizer.Encode(text)
	if len(tokens) <= p.cfg.MaxTokens {
		return text
	}
	truncated := p.tokenizer.Decode(tokens[:p.cfg.MaxTokens])
	p.logger.Info("truncated text to token budget",
		zap.Int("tokens_before", len(tokens)),
		zap.Int("tokens_after", p.cfg.MaxTokens),
	)
	return truncated
}

// RunStage sends one system/user pair to the model. The boolean is false when
// the stage produced nothing, including on model errors, which are logged and
// swallowed.
func (p *Pipeline) RunStage(ctx context.Context, systemPrompt, userText string) (string, bool) {
	return p.run(ctx, StageAdhoc, systemPrompt, userText)
}

func (p *Pipeline) run(ctx context.Context, stage, systemPrompt, userText string) (string, bool) {
	if systemPrompt == "" || userText == "" {
		metrics.ObserveStage(stage, "skipped")
		return "", false
	}
	out, err := p.completer.Complete(ctx, systemPrompt, p.TruncateToBudget(userText))
	if err != nil {
		p.logger.Warn("llm stage failed", zap.String("stage", stage), zap.Error(err))
		metrics.ObserveStage(stage, "error")
		return "", false
	}
	if out == "" {
		metrics.ObserveStage(stage, "empty")
		return "", false
	}
	metrics.ObserveStage(stage, "ok")
	return out, true
}

// ExtractDetail produces the long-form description of a page.
func (p *Pipeline) ExtractDetail(ctx context.Context, raw string) (string, bool) {
	return p.run(ctx, StageDetail, p.cfg.Prompts.Detail, raw)
}

// SelectTags asks the model for a comma-separated tag list. The result is
// never nil.
func (p *Pipeline) SelectTags(ctx context.Context, raw string, hint []string) []string {
	prompt := p.cfg.Prompts.Tags
	if strings.Contains(prompt, tagsPlaceholder) {
		prompt = strings.ReplaceAll(prompt, tagsPlaceholder, strings.Join(hint, ", "))
	}
	out, ok := p.run(ctx, StageTags, prompt, raw)
	if !ok {
		return []string{}
	}
	return ParseTags(out)
}

// ParseTags splits a comma-separated model reply into trimmed, non-empty tags.
func ParseTags(out string) []string {
	tags := []string{}
	for _, tag := range strings.Split(out, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Translate renders raw in the target language. English targets return raw
// without a model call.
func (p *Pipeline) Translate(ctx context.Context, language, raw string) (string, bool) {
	if strings.Contains(strings.ToLower(language), "english") {
		return raw, true
	}
	prompt := strings.ReplaceAll(p.cfg.Prompts.Language, languagePlaceholder, language)
	out, ok := p.run(ctx, StageTranslate, prompt, raw)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(raw, "#") {
		out = StripMarkdown(out)
	}
	return out, true
}

var markdownMarkers = []string{"### ", "## ", "# ", "**"}

// StripMarkdown removes heading and bold markers, one marker at a time.
func StripMarkdown(s string) string {
	for _, marker := range markdownMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	return s
}

// Enrich runs every stage once per input. A failed stage leaves its field
// empty and never stops the others.
func (p *Pipeline) Enrich(ctx context.Context, raw string, languages []string, hint []string) site.EnrichedContent {
	out := site.EnrichedContent{
		Tags:      []string{},
		Languages: make(map[string]*string, len(languages)),
	}
	if detail, ok := p.ExtractDetail(ctx, raw); ok {
		out.Detail = &detail
	}
	out.Tags = p.SelectTags(ctx, raw, hint)
	for _, lang := range languages {
		if translated, ok := p.Translate(ctx, lang, raw); ok {
			out.Languages[lang] = &translated
		} else {
			out.Languages[lang] = nil
		}
	}
	return out
}
