package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ChunkMetadata carries positional context for a chunk. Page is the
// 1-based source page; SectionHeader is the nearest preceding heading
// (capped at 100 chars).
type ChunkMetadata struct {
	Page          int    `json:"page,omitempty" bson:"page,omitempty"`
	SectionHeader string `json:"sectionHeader,omitempty" bson:"section_header,omitempty"`
}

// Chunk is a contiguous span of a document's extracted text. Chunks are
// created in bulk during processing, immutable thereafter, and superseded
// wholesale (delete-all, reinsert-all) when a document is reprocessed.
type Chunk struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	DocumentID primitive.ObjectID `json:"document_id" bson:"document_id"`
	UserID     primitive.ObjectID `json:"user_id" bson:"user_id"`
	ChunkID    string             `json:"chunk_id" bson:"chunk_id"`
	Content    string             `json:"content" bson:"content"`
	ChunkIndex int                `json:"chunk_index" bson:"chunk_index"`
	Metadata   ChunkMetadata      `json:"metadata" bson:"metadata"`
	Vector     []float32          `json:"-" bson:"vector,omitempty"`
}

// RetrievedChunk is a chunk plus a retrieval-time relevance score. It is
// constructed fresh per query and never persisted. Similarity semantics
// depend on source: cosine-like from vector search, a rank score from
// lexical search, or an RRF-fused score. Values from heterogeneous
// sources are not comparable without fusion.
type RetrievedChunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	ChunkIndex int           `json:"chunk_index"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
}

// PageText is one page of extracted document text, in page order.
type PageText struct {
	Num  int
	Text string
}
