package memory

import (
	"context"
	"time"
)

// Index is a similarity-search vector index holding past verdicts.
//
// Implementations:
//   - PineconeIndex: hosted index over the Pinecone data-plane REST API.
//   - SQLiteIndex: local brute-force cosine search in the juskvi database.
type Index interface {
	// Query returns up to topK nearest records to vector, best first.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, vectors []Vector) error
}

// Vector is one stored memory record.
type Vector struct {
	ID        string
	Values    []float32
	Text      string
	CreatedAt time.Time
}

// Match is a query hit with its similarity score.
type Match struct {
	ID    string
	Score float32
	Text  string
}
