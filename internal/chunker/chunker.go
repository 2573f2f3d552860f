// Package chunker splits raw document text into bounded, retrievable units.
package chunker

import "strings"

// Chunker accumulates whole sentences into chunks of roughly TargetSize
// bytes and discards fragments shorter than MinSize.
type Chunker struct {
	TargetSize int
	MinSize    int
}

// New creates a Chunker. Non-positive sizes fall back to the defaults
// used for the corporate knowledge base (1200 / 250).
func New(targetSize, minSize int) *Chunker {
	if targetSize <= 0 {
		targetSize = 1200
	}
	if minSize < 0 {
		minSize = 0
	}
	return &Chunker{TargetSize: targetSize, MinSize: minSize}
}

// Split segments text at ". " sentence boundaries and greedily packs
// sentences into chunks. A chunk is closed as soon as appending the next
// sentence would reach or exceed TargetSize; the trailing buffer becomes a
// final chunk regardless of size. A single sentence longer than TargetSize
// is emitted verbatim as one oversized chunk, never truncated or split.
// Chunks whose trimmed length is below MinSize are dropped.
//
// The same input always yields the same chunk sequence.
func (c *Chunker) Split(text string) []string {
	sentences := strings.Split(text, ". ")

	var chunks []string
	var cur string
	for _, s := range sentences {
		s = strings.TrimSuffix(s, ".")
		if strings.TrimSpace(s) == "" {
			continue
		}
		if len(cur)+len(s) < c.TargetSize {
			cur += s + ". "
			continue
		}
		if t := strings.TrimSpace(cur); t != "" {
			chunks = append(chunks, t)
		}
		cur = s + ". "
	}
	if t := strings.TrimSpace(cur); t != "" {
		chunks = append(chunks, t)
	}

	out := chunks[:0]
	for _, ch := range chunks {
		if len(ch) >= c.MinSize {
			out = append(out, ch)
		}
	}
	return out
}
