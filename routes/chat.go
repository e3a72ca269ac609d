package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"docai-platform/internal/ai"
	"docai-platform/internal/config"
	"docai-platform/internal/logger"
	"docai-platform/internal/telemetry"
	"docai-platform/middleware"
	"docai-platform/models"
	"docai-platform/services"
	"docai-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatDeps bundles what the chat endpoint needs.
type ChatDeps struct {
	Cfg      *config.Config
	Store    *services.DocumentStore
	Answerer *services.AnswererService
	Cache    *services.ChunkCacheService
	Metrics  *telemetry.Metrics
}

func SetupChatRoutes(router *gin.Engine, authMW *middleware.AuthMiddleware, rateLimit gin.HandlerFunc, deps ChatDeps) {
	router.POST("/documents/:id/chat", authMW.RequireAuth(), rateLimit, handleChat(deps))
}

// chatEvent is one NDJSON line in the response stream.
type chatEvent struct {
	Type    string          `json:"type"`
	Data    []models.Source `json:"data,omitempty"`
	Content string          `json:"content,omitempty"`
	Message string          `json:"message,omitempty"`
}

// handleChat streams a grounded answer as NDJSON: a sources event,
// delta events as the model produces text, then done (or error).
func handleChat(deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		documentID := c.Param("id")

		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request. Send { message: string }.", nil)
			return
		}

		doc, err := deps.Store.GetOwned(c.Request.Context(), documentID, userID)
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if doc.Status != models.StatusReady || doc.ChunkCount == 0 {
			utils.RespondWithBadRequest(c, "Document must be processed before chat", nil)
			return
		}

		retrievalStart := time.Now()
		chunks, cached := deps.Cache.GetCachedQueryResult(c.Request.Context(), documentID, req.Message)
		if !cached {
			chunks, err = deps.Answerer.RetrieveForQuery(c.Request.Context(), documentID, userID, req.Message)
			if err != nil {
				logger.Error("Retrieval failed", "document_id", documentID, "error", err.Error())
				utils.RespondWithInternalError(c, "Failed to answer", nil)
				return
			}
			if len(chunks) > 0 {
				deps.Cache.CacheQueryResult(c.Request.Context(), documentID, req.Message, chunks)
			}
		}
		if deps.Metrics != nil {
			deps.Metrics.RetrievalDuration.Record(c.Request.Context(), time.Since(retrievalStart).Seconds())
			deps.Metrics.RetrievedChunks.Add(c.Request.Context(), int64(len(chunks)))
		}

		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		enc := json.NewEncoder(c.Writer)
		send := func(ev chatEvent) {
			if err := enc.Encode(ev); err != nil {
				return
			}
			c.Writer.Flush()
		}

		if len(chunks) == 0 {
			send(chatEvent{Type: "sources", Data: []models.Source{}})
			send(chatEvent{Type: "delta", Content: services.NoRelevantContentMessage})
			send(chatEvent{Type: "done"})
			return
		}

		send(chatEvent{Type: "sources", Data: services.BuildSources(chunks)})

		usage, err := deps.Answerer.StreamAnswer(c.Request.Context(), req.Message, chunks, func(delta string) {
			send(chatEvent{Type: "delta", Content: delta})
		})
		if err != nil {
			logger.Error("Answer stream failed", "document_id", documentID, "error", err.Error())
			send(chatEvent{Type: "error", Message: "Failed to generate answer"})
		} else {
			send(chatEvent{Type: "done"})
		}

		trackChatUsage(c, deps, doc.ID, userID, usage)
	}
}

func trackChatUsage(c *gin.Context, deps ChatDeps, documentID primitive.ObjectID, userID string, usage ai.TokenUsage) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return
	}
	deps.Store.TrackUsage(c.Request.Context(), models.AIUsage{
		UserID:           uid,
		DocumentID:       documentID,
		Endpoint:         "chat",
		Model:            deps.Cfg.GeminiModel,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	})
	if deps.Metrics != nil {
		deps.Metrics.TokensUsed.Add(c.Request.Context(), int64(usage.PromptTokens+usage.CompletionTokens))
	}
}
