package routes

import (
	"errors"
	"net/http"

	"docai-platform/internal/ai"
	"docai-platform/internal/config"
	"docai-platform/middleware"
	"docai-platform/models"
	"docai-platform/services"
	"docai-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SummarizeDeps bundles what the summarize endpoint needs.
type SummarizeDeps struct {
	Cfg        *config.Config
	Store      *services.DocumentStore
	Summarizer *services.SummarizerService
	LLM        *ai.GeminiClient
}

func SetupSummarizeRoutes(router *gin.Engine, authMW *middleware.AuthMiddleware, rateLimit gin.HandlerFunc, deps SummarizeDeps) {
	router.POST("/documents/:id/summarize", authMW.RequireAuth(), rateLimit, handleSummarize(deps))
}

type summarizeRequest struct {
	Type       string `json:"type"`
	Regenerate bool   `json:"regenerate"`
}

// handleSummarize returns a styled summary of a processed document,
// serving stored summaries unless regeneration is requested.
func handleSummarize(deps SummarizeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req summarizeRequest
		// Body is optional; defaults apply.
		_ = c.ShouldBindJSON(&req)
		style := req.Type
		if !services.ValidSummaryStyle(style) {
			style = services.DefaultSummaryStyle
		}

		doc, err := deps.Store.GetOwned(c.Request.Context(), c.Param("id"), userID)
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if doc.Status != models.StatusReady || doc.ChunkCount == 0 {
			utils.RespondWithBadRequest(c, "Document must be processed before summarization", nil)
			return
		}

		if !req.Regenerate {
			stored, err := deps.Store.GetSummary(c.Request.Context(), doc.ID, style)
			if err == nil && stored != nil {
				c.JSON(http.StatusOK, gin.H{"summary": stored.Content, "type": style, "cached": true})
				return
			}
		}

		result, err := deps.Summarizer.Summarize(c.Request.Context(), doc.ID.Hex(), userID, style, req.Regenerate)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to generate summary", nil)
			return
		}

		if !result.Cached {
			uid, uidErr := primitive.ObjectIDFromHex(userID)
			if uidErr == nil {
				if err := deps.Store.UpsertSummary(c.Request.Context(), models.Summary{
					DocumentID: doc.ID,
					UserID:     uid,
					Style:      result.Style,
					Content:    result.Text,
				}); err == nil {
					usage := deps.LLM.LastUsage()
					deps.Store.TrackUsage(c.Request.Context(), models.AIUsage{
						UserID:           uid,
						DocumentID:       doc.ID,
						Endpoint:         "summarize",
						Model:            deps.Cfg.GeminiModel,
						PromptTokens:     usage.PromptTokens,
						CompletionTokens: usage.CompletionTokens,
					})
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"summary": result.Text, "type": result.Style, "cached": result.Cached})
	}
}
