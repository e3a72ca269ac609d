package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document status values
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// DocumentMetadata holds extraction stats for a processed document.
type DocumentMetadata struct {
	Size           int64         `json:"size" bson:"size"`
	Pages          int           `json:"pages" bson:"pages"`
	WordCount      int           `json:"word_count" bson:"word_count"`
	CharacterCount int           `json:"character_count" bson:"character_count"`
	ProcessingTime time.Duration `json:"processing_time" bson:"processing_time"`
}

// Document represents an uploaded PDF and its processing state.
type Document struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID       primitive.ObjectID `json:"user_id" bson:"user_id"`
	Filename     string             `json:"filename" bson:"filename"`
	OriginalName string             `json:"original_name" bson:"original_name"`
	FilePath     string             `json:"-" bson:"file_path"`
	FileHash     string             `json:"-" bson:"file_hash"`
	Status       string             `json:"status" bson:"status"`
	// Progress is 0-100; embedding batches report fractional progress here.
	Progress    int       `json:"progress" bson:"progress"`
	ChunkCount  int       `json:"chunk_count" bson:"chunk_count"`
	ErrorDetail string    `json:"error_detail,omitempty" bson:"error_detail,omitempty"`
	Metadata    DocumentMetadata `json:"metadata" bson:"metadata"`
	UploadedAt  time.Time `json:"uploaded_at" bson:"uploaded_at"`
	ProcessedAt time.Time `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}

// Summary is a stored LLM summary of one document in one style.
type Summary struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DocumentID primitive.ObjectID `json:"document_id" bson:"document_id"`
	UserID     primitive.ObjectID `json:"user_id" bson:"user_id"`
	Style      string             `json:"style" bson:"style"`
	Content    string             `json:"content" bson:"content"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}
