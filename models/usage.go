package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AIUsage records token consumption for a single LLM call.
type AIUsage struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID           primitive.ObjectID `json:"user_id" bson:"user_id"`
	DocumentID       primitive.ObjectID `json:"document_id,omitempty" bson:"document_id,omitempty"`
	Endpoint         string             `json:"endpoint" bson:"endpoint"`
	Model            string             `json:"model" bson:"model"`
	PromptTokens     int                `json:"prompt_tokens" bson:"prompt_tokens"`
	CompletionTokens int                `json:"completion_tokens" bson:"completion_tokens"`
	TotalTokens      int                `json:"total_tokens" bson:"total_tokens"`
	Timestamp        time.Time          `json:"timestamp" bson:"timestamp"`
}

// ChatRequest is the body of POST /documents/:id/chat.
type ChatRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// Source is the citation payload sent alongside a streamed answer.
type Source struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Page       int    `json:"page,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Section    string `json:"section,omitempty"`
}
