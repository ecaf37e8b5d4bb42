package corpus

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// StripMarkdown renders chat markdown down to its visible words: emphasis
// markers, link targets and fenced code blocks are dropped, inline code
// keeps its text. Whitespace is collapsed to single spaces.
func StripMarkdown(text string) string {
	// Parsers keep state, so each call gets its own.
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse([]byte(text), p)

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			switch node.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.TableCell:
				b.WriteByte(' ')
			}
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			b.Write(n.Literal)
		case *ast.Code:
			b.Write(n.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteByte(' ')
		case *ast.CodeBlock, *ast.HTMLBlock:
			return ast.SkipChildren
		}
		return ast.GoToNext
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// SplitSentences segments text into sentences. When segmentation fails or
// finds nothing the whole text is returned as one sentence.
func SplitSentences(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	doc, err := prose.NewDocument(trimmed,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		return []string{trimmed}
	}

	var sentences []string
	for _, sent := range doc.Sentences() {
		if s := strings.TrimSpace(sent.Text); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return []string{trimmed}
	}
	return sentences
}

// Pipeline prepares raw messages for seeding.
type Pipeline struct {
	StripMarkdown  bool
	SplitSentences bool
	Logger         *zap.Logger
}

// Prepare applies the configured steps and drops segments that end up empty.
// Each returned string is seeded as its own segment.
func (p Pipeline) Prepare(messages []string) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		if p.StripMarkdown {
			msg = StripMarkdown(msg)
		}
		if strings.TrimSpace(msg) == "" {
			continue
		}
		if !p.SplitSentences {
			out = append(out, msg)
			continue
		}
		out = append(out, SplitSentences(msg)...)
	}

	if p.Logger != nil {
		p.Logger.Debug("Prepared corpus",
			zap.Int("messages", len(messages)),
			zap.Int("segments", len(out)))
	}
	return out
}
