// Package chunker splits extracted document text into overlapping,
// size-bounded passages for indexing.
package chunker

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// Default chunking settings.
const (
	DefaultChunkSize    = 1000
	DefaultOverlap      = 100
	DefaultMinChunkSize = 350
)

// Strategy names reported in Result.
const (
	StrategyEmpty    = "empty"
	StrategyWindow   = "char_window"
	StrategySentence = "sentence_aware"
)

// Options configures one Split call.
type Options struct {
	// ChunkSize is the target passage size in characters. Must be > 0.
	ChunkSize int

	// Overlap is the number of trailing characters repeated at the start
	// of the next passage. Must be >= 0. An overlap >= ChunkSize is
	// clamped to ChunkSize/10 to guarantee forward progress.
	Overlap int

	// MinChunkSize merges a smaller final passage into the previous one.
	MinChunkSize int

	// SentenceAware packs whole sentences into passages instead of
	// cutting at raw character boundaries.
	SentenceAware bool
}

// DefaultOptions returns the standard chunking configuration.
func DefaultOptions() Options {
	return Options{
		ChunkSize:     DefaultChunkSize,
		Overlap:       DefaultOverlap,
		MinChunkSize:  DefaultMinChunkSize,
		SentenceAware: true,
	}
}

// Result describes which strategy ran. It exists for observability and
// test assertions, not for correctness of the text itself.
type Result struct {
	// Strategy is the splitting strategy that produced the chunks.
	Strategy string

	// LongSentenceFallback is true when a single sentence exceeded the
	// chunk size and was subsplit with the character window.
	LongSentenceFallback bool

	// MergedFinalChunk is true when an undersized tail was merged into
	// the previous chunk.
	MergedFinalChunk bool
}

// Split chunks text into ordered, non-empty passages. Deterministic for
// identical inputs and options. Empty or whitespace-only input produces an
// empty slice, not an error.
func Split(text string, opts Options) ([]string, Result, error) {
	text = strings.TrimSpace(text)

	if opts.ChunkSize <= 0 {
		return nil, Result{}, fmt.Errorf("chunk size must be > 0: %w", domain.ErrInvalidInput)
	}
	if opts.Overlap < 0 {
		return nil, Result{}, fmt.Errorf("overlap must be >= 0: %w", domain.ErrInvalidInput)
	}
	if opts.Overlap >= opts.ChunkSize {
		// The window would never advance otherwise.
		opts.Overlap = opts.ChunkSize / 10
	}

	if text == "" {
		return []string{}, Result{Strategy: StrategyEmpty}, nil
	}

	var (
		chunks []string
		res    Result
	)
	if opts.SentenceAware {
		res.Strategy = StrategySentence
		chunks, res.LongSentenceFallback = splitSentenceAware(text, opts.ChunkSize, opts.Overlap)
	} else {
		res.Strategy = StrategyWindow
		chunks = splitWindow(text, opts.ChunkSize, opts.Overlap)
	}

	trimmed := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			trimmed = append(trimmed, c)
		}
	}
	chunks = trimmed

	// Merge a small leftover final chunk.
	if n := len(chunks); n >= 2 && len(chunks[n-1]) < opts.MinChunkSize {
		chunks[n-2] = strings.TrimSpace(strings.TrimRight(chunks[n-2], " \t\n") + "\n\n" + strings.TrimLeft(chunks[n-1], " \t\n"))
		chunks = chunks[:n-1]
		res.MergedFinalChunk = true
	}

	return chunks, res, nil
}

// splitWindow is pure character windowing: [0:size], then advance by
// (size - overlap), never less than 1.
func splitWindow(text string, size, overlap int) []string {
	step := size - overlap
	if step < 1 {
		step = 1
	}

	out := make([]string, 0, len(text)/step+1)
	for i := 0; i < len(text); i += step {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[i:end])
	}
	return out
}

// splitSentenceAware packs consecutive sentences into chunks until the
// next sentence would overflow the chunk size. Overlap is seeded as the
// last overlap characters of the previous chunk. A sentence longer than
// the chunk size flushes the buffer and is itself split with the
// character window; the second return value reports that fallback.
func splitSentenceAware(text string, size, overlap int) ([]string, bool) {
	sentences := splitSentences(text)

	var (
		chunks   []string
		current  string
		fellBack bool
	)

	flush := func() string {
		chunk := strings.TrimSpace(current)
		current = ""
		return chunk
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		if len(s) > size {
			fellBack = true
			if chunk := flush(); chunk != "" {
				chunks = append(chunks, chunk)
			}
			chunks = append(chunks, splitWindow(s, size, overlap)...)
			continue
		}

		if current == "" {
			current = s
			continue
		}

		if len(current)+1+len(s) > size {
			chunk := flush()
			if chunk != "" {
				chunks = append(chunks, chunk)
				if overlap > 0 {
					// A chunk shorter than the overlap seeds whole.
					start := len(chunk) - overlap
					if start < 0 {
						start = 0
					}
					current = strings.TrimSpace(chunk[start:])
				}
			}
			current = strings.TrimSpace(current + " " + s)
		} else {
			current = current + " " + s
		}
	}

	if chunk := flush(); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks, fellBack
}

// splitSentences segments text on common sentence terminators.
func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
