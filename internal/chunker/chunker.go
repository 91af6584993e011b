// Package chunker turns raw file content into an ordered sequence of text
// chunks suitable for retrieval indexing.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunk is one piece of split text plus the metadata the splitter attached
// to it (source name, page/offset hints).
type Chunk struct {
	Text     string
	Metadata map[string]any
}

// Chunker splits file content into ordered chunks. The output order defines
// the persisted chunk order, so implementations must be deterministic.
type Chunker interface {
	Chunk(content string, metadata map[string]any, chunkSize, overlapSize int) ([]Chunk, error)
}

// RecursiveSplitter chunks text with langchaingo's recursive character
// splitter: paragraph boundaries first, then lines, then words.
type RecursiveSplitter struct{}

var _ Chunker = (*RecursiveSplitter)(nil)

// NewRecursiveSplitter creates a stateless recursive-character chunker.
func NewRecursiveSplitter() *RecursiveSplitter {
	return &RecursiveSplitter{}
}

// Chunk splits content into pieces of at most chunkSize characters with
// overlapSize characters of overlap between neighbors. Empty or
// whitespace-only content yields zero chunks without error.
func (s *RecursiveSplitter) Chunk(content string, metadata map[string]any, chunkSize, overlapSize int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlapSize < 0 || overlapSize >= chunkSize {
		return nil, fmt.Errorf("overlap size must be in [0, chunk size), got %d", overlapSize)
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlapSize),
	)

	docs, err := textsplitter.CreateDocuments(splitter, []string{content}, []map[string]any{metadata})
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:     doc.PageContent,
			Metadata: doc.Metadata,
		})
	}
	return chunks, nil
}
