package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	summaryChunkSize    = 8000
	summaryChunkOverlap = 200

	summaryPrompt = "Please provide a concise summary of the following text. Ensure your response is properly formatted with paragraphs, correct grammar, and punctuation:\n\n"
)

// Summarize summarizes text of any length. Text that does not fit in one
// chunk is summarized chunk by chunk, then the partial summaries are merged.
func Summarize(ctx context.Context, gen Generator, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to summarize")
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(summaryChunkSize),
		textsplitter.WithChunkOverlap(summaryChunkOverlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return "", errors.Wrap(err, "failed to split text")
	}
	if len(chunks) <= 1 {
		return gen.Generate(ctx, summaryPrompt+text, nil)
	}

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := fmt.Sprintf("Summarize part %d of %d of a document, keeping key facts:\n\n%s", i+1, len(chunks), chunk)
		partial, err := gen.Generate(ctx, prompt, nil)
		if err != nil {
			return "", errors.Wrapf(err, "failed to summarize chunk %d", i+1)
		}
		partials = append(partials, partial)
	}
	slog.Debug("summarized document chunks", slog.Int("chunks", len(chunks)))

	var sb strings.Builder
	sb.WriteString(summaryPrompt)
	sb.WriteString("The text below is a set of partial summaries of one document.\n\n")
	for i, partial := range partials {
		fmt.Fprintf(&sb, "Part %d: %s\n\n", i+1, partial)
	}
	return gen.Generate(ctx, sb.String(), nil)
}
