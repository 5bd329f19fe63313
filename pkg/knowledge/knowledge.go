// Package knowledge provides the retrieval collaborator backing the
// knowledge skill: documents indexed in a vector store, searched by
// semantic similarity.
package knowledge

import "context"

// Document is a unit of safety knowledge to index.
type Document struct {
	ID       string
	Title    string
	Content  string
	Category string
	// EventType links a guide document to a detection event type,
	// empty for general material.
	EventType string
}

// Snippet is a retrieved fragment with its similarity score.
type Snippet struct {
	ID       string
	Title    string
	Content  string
	Category string
	Score    float32
}

// Retriever finds knowledge snippets relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// Indexer ingests documents into the knowledge base.
type Indexer interface {
	Index(ctx context.Context, docs []Document) error
}

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
