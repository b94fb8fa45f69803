package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Condensa/internal/core"
)

const (
	singlePassInstruction = "Please provide a comprehensive summary of the following document. " +
		"Provide a clear, concise summary that captures the main points, key findings, and important details."

	chunkInstructionFmt = "Please provide a concise summary of this section of a document (part %d of %d). " +
		"Focus on key points and important information."

	combineInstruction = "Based on the following section summaries from a document, create a comprehensive final summary. " +
		"Synthesize the information into a cohesive summary that captures the overall content, main themes, and key points."

	// chunkConcurrency bounds parallel summarization calls per document.
	chunkConcurrency = 4
)

// Engine produces one coherent summary for a document of arbitrary length
// under a bounded per-call input size.
//
// Documents at or under ChunkSize words get a single summarization call.
// Longer documents are split at word boundaries, each chunk summarized
// independently, and the intermediate summaries recombined in document order;
// if the combination still exceeds the limit the same reduction runs again,
// up to MaxDepth levels.
type Engine struct {
	summarizer core.Summarizer
	chunkSize  int
	maxDepth   int
	attempts   int
	logger     zerolog.Logger
}

func NewEngine(summarizer core.Summarizer, chunkSize, maxDepth, attempts int, logger zerolog.Logger) *Engine {
	if chunkSize <= 0 {
		chunkSize = 5000
	}
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &Engine{
		summarizer: summarizer,
		chunkSize:  chunkSize,
		maxDepth:   maxDepth,
		attempts:   attempts,
		logger:     logger.With().Str("component", "summarize").Logger(),
	}
}

// SummarizeDocument returns the final summary for one document's extracted text.
func (e *Engine) SummarizeDocument(ctx context.Context, text, filename string) (string, error) {
	words := CountWords(text)
	log := e.logger.With().Str("file", filename).Logger()

	if words <= e.chunkSize {
		log.Info().Int("words", words).Msg("summarizing in a single pass")
		out, err := e.call(ctx, text, singlePassInstruction)
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrSummarizationFailed, err)
		}
		return out, nil
	}

	log.Info().Int("words", words).Msg("document exceeds chunk size, reducing")

	current := text
	for depth := 0; ; depth++ {
		if depth >= e.maxDepth {
			return "", fmt.Errorf("%w: %w after %d levels",
				core.ErrSummarizationFailed, core.ErrSummarizationDepthExceeded, depth)
		}

		combined, err := e.reduceOnce(ctx, current, depth, log)
		if err != nil {
			return "", err
		}

		if CountWords(combined) <= e.chunkSize {
			log.Info().Int("depth", depth+1).Msg("reduction fits, combining")
			out, err := e.call(ctx, combined, combineInstruction)
			if err != nil {
				return "", fmt.Errorf("%w: combine: %v", core.ErrSummarizationFailed, err)
			}
			return out, nil
		}
		current = combined
	}
}

// reduceOnce performs one map step: split, summarize chunks concurrently, and
// rejoin the intermediate summaries in original document order.
func (e *Engine) reduceOnce(ctx context.Context, text string, depth int, log zerolog.Logger) (string, error) {
	chunks := SplitWords(text, e.chunkSize)
	log.Info().Int("depth", depth).Int("chunks", len(chunks)).Msg("summarizing chunks")

	summaries := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkConcurrency)

	for idx, chunk := range chunks {
		g.Go(func() error {
			instruction := fmt.Sprintf(chunkInstructionFmt, idx+1, len(chunks))
			out, err := e.call(gctx, chunk, instruction)
			if err != nil {
				return fmt.Errorf("%w: chunk %d of %d: %v",
					core.ErrSummarizationFailed, idx+1, len(chunks), err)
			}
			summaries[idx] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Section %d: %s", i+1, s)
	}
	return b.String(), nil
}

// call invokes the summarizer with bounded retries and exponential backoff.
func (e *Engine) call(ctx context.Context, text, instruction string) (string, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < e.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		out, err := e.summarizer.Summarize(ctx, text, instruction)
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		lastErr = err
		e.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("summarizer call failed")
	}
	return "", fmt.Errorf("after %d attempts: %w", e.attempts, lastErr)
}
