// Package chunker provides a structure-aware text chunking processor.
//
// Chunks are rune spans of the normalised document text. Each chunk ends at
// the strongest boundary available inside its window (heading, paragraph or
// table edge, sentence end, word gap) and falls back to a hard cut when the
// window holds no boundary at all. Consecutive chunks overlap by at most the
// configured overlap, so the spans cover the text without gaps.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 128

// chunkNamespace scopes deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("7b0b5e0e-4f0c-4d8a-9a53-2f1d9c3e6a10")

// Boundary strengths, weakest first.
const (
	boundaryNone uint8 = iota
	boundaryWord
	boundarySentence
	boundaryBlock
	boundaryHeading
)

// Processor splits document content into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Validate reports whether size and overlap form a usable chunking config.
func Validate(size, overlap int) error {
	switch {
	case size <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, size)
	case overlap < 0:
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfig, overlap)
	case overlap >= size:
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrInvalidConfig, overlap, size)
	}
	return nil
}

// NewValidated creates a chunker and refuses configs that New would clamp.
func NewValidated(size, overlap int) (*Processor, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return New(WithChunkSize(size), WithOverlap(overlap)), nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// span is a half-open rune range [start, end).
type span struct {
	start, end int
}

// heading is a heading line found in the text.
type heading struct {
	pos   int
	level int
	title string
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		// Empty content produces no chunks
		return nil, nil
	}

	text := []rune(doc.Content)
	strengths, headings := analyse(text)
	spans := p.split(text, strengths)
	paged := strings.ContainsRune(doc.Content, '\f')

	chunks := make([]domain.Chunk, 0, len(spans))
	var (
		path      []heading
		nextHead  int
		page      = 1
		pageCount int
	)

	for _, sp := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Advance heading path and page counter to the chunk start.
		for nextHead < len(headings) && headings[nextHead].pos <= sp.start {
			path = pushHeading(path, headings[nextHead])
			nextHead++
		}
		for ; pageCount < sp.start; pageCount++ {
			if text[pageCount] == '\f' {
				page++
			}
		}

		content := string(text[sp.start:sp.end])
		if strings.TrimSpace(content) == "" {
			continue
		}

		position := len(chunks)
		meta := map[string]any{
			domain.MetaCharStart: sp.start,
			domain.MetaCharEnd:   sp.end,
		}
		if len(path) > 0 {
			meta[domain.MetaHeading] = headingPath(path)
		}
		if paged {
			meta[domain.MetaPage] = page
		}

		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(doc.ID, position),
			DocumentID: doc.ID,
			Content:    content,
			Position:   position,
			Metadata:   meta,
		})
	}

	return chunks, nil
}

// split computes chunk spans over text.
func (p *Processor) split(text []rune, strengths []uint8) []span {
	n := len(text)
	var spans []span

	// A boundary must leave the chunk meaningfully longer than its overlap.
	minAdvance := p.overlap + max(1, (p.chunkSize-p.overlap)/3)

	start := 0
	for start < n {
		limit := start + p.chunkSize
		end := n
		if limit < n {
			end = bestBoundary(strengths, start+minAdvance, limit)
		}
		spans = append(spans, span{start: start, end: end})

		if end >= n {
			break
		}
		start = nextStart(text, end, p.overlap)
	}

	return spans
}

// bestBoundary returns the position in [lo, hi] holding the strongest boundary,
// preferring later positions among equals. Falls back to a hard cut at hi.
func bestBoundary(strengths []uint8, lo, hi int) int {
	if lo > hi {
		lo = hi
	}
	best, bestStrength := hi, boundaryNone
	for i := hi; i >= lo; i-- {
		if strengths[i] > bestStrength {
			best, bestStrength = i, strengths[i]
			if bestStrength == boundaryHeading {
				break
			}
		}
	}
	return best
}

// nextStart backs up from end by overlap, then moves forward to a word start
// so the overlap never begins mid-word. Never moves past end.
func nextStart(text []rune, end, overlap int) int {
	if overlap <= 0 {
		return end
	}
	s := end - overlap
	for s < end && !isWordStart(text, s) {
		s++
	}
	return s
}

func isWordStart(text []rune, i int) bool {
	if i == 0 {
		return true
	}
	return unicode.IsSpace(text[i-1]) && !unicode.IsSpace(text[i])
}

// analyse assigns a boundary strength to every cut position (0..len) and
// collects heading lines.
func analyse(text []rune) ([]uint8, []heading) {
	n := len(text)
	strengths := make([]uint8, n+1)
	var headings []heading

	raise := func(i int, s uint8) {
		if s > strengths[i] {
			strengths[i] = s
		}
	}

	// Word and sentence boundaries.
	for i := 1; i < n; i++ {
		if unicode.IsSpace(text[i]) {
			continue
		}
		prev := text[i-1]
		if !unicode.IsSpace(prev) {
			continue
		}
		raise(i, boundaryWord)
		if prev == '\n' || prev == '\f' {
			raise(i, boundarySentence)
		}
		if j := lastNonSpace(text, i-1); j >= 0 && strings.ContainsRune(".!?;:", text[j]) {
			raise(i, boundarySentence)
		}
	}

	// Line-level structure: paragraphs, pages, tables and headings.
	prevBlank, prevTable := true, false
	lineStart := 0
	for lineStart < n {
		lineEnd := lineStart
		for lineEnd < n && text[lineEnd] != '\n' && text[lineEnd] != '\f' {
			lineEnd++
		}

		line := strings.TrimSpace(string(text[lineStart:lineEnd]))
		blank := line == ""
		table := strings.HasPrefix(line, "|")
		pageBreak := lineStart > 0 && text[lineStart-1] == '\f'

		if !blank && lineStart > 0 {
			first := firstNonSpace(text, lineStart, lineEnd)
			if prevBlank || pageBreak || table != prevTable {
				raise(first, boundaryBlock)
			}
			if level, title, ok := parseHeading(line); ok {
				raise(first, boundaryHeading)
				headings = append(headings, heading{pos: first, level: level, title: title})
			}
		} else if !blank {
			if level, title, ok := parseHeading(line); ok {
				headings = append(headings, heading{pos: firstNonSpace(text, lineStart, lineEnd), level: level, title: title})
			}
		}

		if !blank {
			prevTable = table
		}
		prevBlank = blank
		lineStart = lineEnd + 1
	}

	return strengths, headings
}

func lastNonSpace(text []rune, i int) int {
	for ; i >= 0; i-- {
		if !unicode.IsSpace(text[i]) {
			return i
		}
	}
	return -1
}

func firstNonSpace(text []rune, from, to int) int {
	for i := from; i < to; i++ {
		if !unicode.IsSpace(text[i]) {
			return i
		}
	}
	return from
}

// parseHeading recognises "#"-prefixed heading lines.
func parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(line[level:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// pushHeading replaces headings at the same or deeper level.
func pushHeading(path []heading, h heading) []heading {
	for len(path) > 0 && path[len(path)-1].level >= h.level {
		path = path[:len(path)-1]
	}
	return append(path, h)
}

func headingPath(path []heading) string {
	titles := make([]string, len(path))
	for i, h := range path {
		titles[i] = h.title
	}
	return strings.Join(titles, " > ")
}

// chunkID is deterministic so repeated builds of unchanged documents agree.
func chunkID(documentID string, position int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", documentID, position))).String()
}
