package routes

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docai-platform/internal/config"
	"docai-platform/internal/logger"
	"docai-platform/internal/queue"
	"docai-platform/middleware"
	"docai-platform/models"
	"docai-platform/services"
	"docai-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentDeps bundles what the document endpoints need.
type DocumentDeps struct {
	Cfg       *config.Config
	Store     *services.DocumentStore
	Search    *services.SearchStore
	Processor *services.ProcessorService
	Queue     *asynq.Client
	Cache     *services.ChunkCacheService
}

func SetupDocumentRoutes(router *gin.Engine, authMW *middleware.AuthMiddleware, deps DocumentDeps) {
	docs := router.Group("/documents")
	docs.Use(authMW.RequireAuth())

	docs.POST("", handleUpload(deps))
	docs.GET("", handleListDocuments(deps))
	docs.GET("/:id", handleGetDocument(deps))
	docs.POST("/:id/process", handleReprocess(deps))
	docs.DELETE("/:id", handleDeleteDocument(deps))
}

// handleUpload accepts a PDF, deduplicates by content hash, and kicks
// off processing: inline for small files, queued for large ones.
func handleUpload(deps DocumentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		uid, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user")
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "Missing file upload", nil)
			return
		}
		if fileHeader.Size > deps.Cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "File too large", gin.H{"max_bytes": deps.Cfg.MaxFileSize})
			return
		}
		if !allowedType(deps.Cfg, fileHeader.Header.Get("Content-Type"), fileHeader.Filename) {
			utils.RespondWithBadRequest(c, "Unsupported file type", gin.H{"allowed": deps.Cfg.AllowedTypes})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}

		hash := utils.HashBytes(content)
		existing, err := deps.Store.FindByHash(c.Request.Context(), uid, hash)
		if err != nil {
			utils.RespondWithInternalError(c, "Upload check failed", nil)
			return
		}
		if existing != nil {
			utils.RespondWithConflict(c, "You already uploaded this file", gin.H{"document_id": existing.ID.Hex()})
			return
		}

		if err := os.MkdirAll(deps.Cfg.FileStorageDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Storage unavailable", nil)
			return
		}
		storedName := uuid.NewString() + ".pdf"
		filePath := filepath.Join(deps.Cfg.FileStorageDir, storedName)
		if err := os.WriteFile(filePath, content, 0o644); err != nil {
			utils.RespondWithInternalError(c, "Failed to store file", nil)
			return
		}

		doc := &models.Document{
			UserID:       uid,
			Filename:     storedName,
			OriginalName: fileHeader.Filename,
			FilePath:     filePath,
			FileHash:     hash,
			Status:       models.StatusUploaded,
			Metadata:     models.DocumentMetadata{Size: fileHeader.Size},
		}
		if err := deps.Store.Insert(c.Request.Context(), doc); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create document", nil)
			return
		}

		// Small files process within the request; large ones go to the
		// worker so the upload returns promptly.
		if fileHeader.Size <= deps.Cfg.SyncProcessingLimit {
			if err := deps.Processor.Process(c.Request.Context(), doc.ID.Hex(), userID); err != nil {
				logger.Warn("Inline processing failed", "document_id", doc.ID.Hex(), "error", err.Error())
			}
		} else if err := enqueueProcessing(deps, doc.ID.Hex(), userID); err != nil {
			logger.Error("Failed to enqueue processing", "document_id", doc.ID.Hex(), "error", err.Error())
		}

		fresh, err := deps.Store.GetOwned(c.Request.Context(), doc.ID.Hex(), userID)
		if err != nil {
			fresh = doc
		}
		c.JSON(http.StatusCreated, gin.H{"document": fresh})
	}
}

func enqueueProcessing(deps DocumentDeps, documentID, userID string) error {
	task, err := queue.NewProcessDocumentTask(documentID, userID)
	if err != nil {
		return err
	}
	_, err = deps.Queue.Enqueue(task)
	return err
}

func allowedType(cfg *config.Config, contentType, filename string) bool {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return false
	}
	for _, t := range cfg.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(t), contentType) {
			return true
		}
	}
	return false
}

func handleListDocuments(deps DocumentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := deps.Store.ListOwned(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		if docs == nil {
			docs = []models.Document{}
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs})
	}
}

func handleGetDocument(deps DocumentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := deps.Store.GetOwned(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": doc})
	}
}

// handleReprocess re-runs the processing pipeline, superseding the
// stored chunks.
func handleReprocess(deps DocumentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		doc, err := deps.Store.GetOwned(c.Request.Context(), c.Param("id"), userID)
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if doc.Status == models.StatusProcessing {
			utils.RespondWithConflict(c, "Document is already processing", nil)
			return
		}

		if err := enqueueProcessing(deps, doc.ID.Hex(), userID); err != nil {
			utils.RespondWithInternalError(c, "Failed to queue processing", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": models.StatusProcessing})
	}
}

// handleDeleteDocument removes the record, its chunks, caches, and the
// stored file.
func handleDeleteDocument(deps DocumentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		documentID := c.Param("id")

		doc, err := deps.Store.GetOwned(c.Request.Context(), documentID, userID)
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}

		if err := deps.Store.Delete(c.Request.Context(), documentID, userID); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document", nil)
			return
		}
		if err := deps.Search.DeleteDocumentChunks(c.Request.Context(), documentID); err != nil {
			logger.Warn("Failed to delete chunks", "document_id", documentID, "error", err.Error())
		}
		deps.Cache.InvalidateDocument(c.Request.Context(), documentID)
		if doc.FilePath != "" {
			if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
				logger.Warn("Failed to remove stored file", "path", doc.FilePath, "error", err.Error())
			}
		}

		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}
