package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docai-platform/internal/logger"
	"docai-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDocumentNotFound is returned when a document does not exist or is
// not owned by the requesting user.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore owns the documents, summaries, and ai_usage collections.
type DocumentStore struct {
	documents *mongo.Collection
	summaries *mongo.Collection
	usage     *mongo.Collection
}

func NewDocumentStore(db *mongo.Database) *DocumentStore {
	return &DocumentStore{
		documents: db.Collection("documents"),
		summaries: db.Collection("summaries"),
		usage:     db.Collection("ai_usage"),
	}
}

// Insert stores a new document record.
func (ds *DocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	doc.UploadedAt = time.Now()
	res, err := ds.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return nil
}

// GetOwned fetches a document scoped to its owner.
func (ds *DocumentStore) GetOwned(ctx context.Context, documentID, userID string) (*models.Document, error) {
	docID, uid, err := parseScope(documentID, userID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}

	var doc models.Document
	err = ds.documents.FindOne(ctx, bson.M{"_id": docID, "user_id": uid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByHash returns the user's existing document with the same content
// hash, or nil when the upload is new.
func (ds *DocumentStore) FindByHash(ctx context.Context, userID primitive.ObjectID, hash string) (*models.Document, error) {
	var doc models.Document
	err := ds.documents.FindOne(ctx, bson.M{"user_id": userID, "file_hash": hash}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListOwned returns the user's documents, newest first.
func (ds *DocumentStore) ListOwned(ctx context.Context, userID string) ([]models.Document, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}

	cursor, err := ds.documents.Find(ctx, bson.M{"user_id": uid},
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SetStatus moves a document through its lifecycle. errDetail is only
// stored for failed.
func (ds *DocumentStore) SetStatus(ctx context.Context, documentID primitive.ObjectID, status, errDetail string) error {
	update := bson.M{"status": status}
	switch status {
	case models.StatusProcessing:
		update["progress"] = 0
		update["error_detail"] = ""
	case models.StatusReady:
		update["progress"] = 100
		update["processed_at"] = time.Now()
	case models.StatusFailed:
		update["error_detail"] = errDetail
	}
	_, err := ds.documents.UpdateByID(ctx, documentID, bson.M{"$set": update})
	return err
}

// SetProgress records 0-100 processing progress.
func (ds *DocumentStore) SetProgress(ctx context.Context, documentID primitive.ObjectID, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if _, err := ds.documents.UpdateByID(ctx, documentID, bson.M{"$set": bson.M{"progress": percent}}); err != nil {
		logger.Warn("Failed to update progress", "document_id", documentID.Hex(), "error", err.Error())
	}
}

// SetProcessed records the final chunk count and extraction metadata.
func (ds *DocumentStore) SetProcessed(ctx context.Context, documentID primitive.ObjectID, chunkCount int, meta models.DocumentMetadata) error {
	_, err := ds.documents.UpdateByID(ctx, documentID, bson.M{"$set": bson.M{
		"status":       models.StatusReady,
		"progress":     100,
		"chunk_count":  chunkCount,
		"metadata":     meta,
		"processed_at": time.Now(),
	}})
	return err
}

// Delete removes the document record and its summaries.
func (ds *DocumentStore) Delete(ctx context.Context, documentID, userID string) error {
	docID, uid, err := parseScope(documentID, userID)
	if err != nil {
		return ErrDocumentNotFound
	}

	res, err := ds.documents.DeleteOne(ctx, bson.M{"_id": docID, "user_id": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	if _, err := ds.summaries.DeleteMany(ctx, bson.M{"document_id": docID}); err != nil {
		logger.Warn("Failed to delete summaries", "document_id", documentID, "error", err.Error())
	}
	return nil
}

// UpsertSummary stores one summary per document and style.
func (ds *DocumentStore) UpsertSummary(ctx context.Context, summary models.Summary) error {
	summary.CreatedAt = time.Now()
	_, err := ds.summaries.UpdateOne(ctx,
		bson.M{"document_id": summary.DocumentID, "style": summary.Style},
		bson.M{"$set": bson.M{
			"user_id":    summary.UserID,
			"content":    summary.Content,
			"created_at": summary.CreatedAt,
		}},
		options.Update().SetUpsert(true))
	return err
}

// GetSummary returns a stored summary, or nil when absent.
func (ds *DocumentStore) GetSummary(ctx context.Context, documentID primitive.ObjectID, style string) (*models.Summary, error) {
	var summary models.Summary
	err := ds.summaries.FindOne(ctx, bson.M{"document_id": documentID, "style": style}).Decode(&summary)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// TrackUsage records token consumption. Failures are logged, never
// surfaced: usage accounting must not break the request.
func (ds *DocumentStore) TrackUsage(ctx context.Context, usage models.AIUsage) {
	usage.Timestamp = time.Now()
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	if _, err := ds.usage.InsertOne(ctx, usage); err != nil {
		logger.Warn("Failed to track AI usage", "endpoint", usage.Endpoint, "error", err.Error())
	}
}

// FailStaleProcessing marks documents stuck in processing beyond the
// deadline as failed. Returns the number of documents reaped.
func (ds *DocumentStore) FailStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := ds.documents.UpdateMany(ctx,
		bson.M{"status": models.StatusProcessing, "uploaded_at": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{
			"status":       models.StatusFailed,
			"error_detail": "processing timed out",
		}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
