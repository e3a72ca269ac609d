package services

import (
	"context"
	"fmt"

	"docai-platform/internal/config"
	"docai-platform/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SearchStore persists document chunks and serves both retrieval backends:
// Atlas $vectorSearch for semantic similarity and Atlas $search for
// lexical term match. All queries are scoped to one document and its
// owning user.
type SearchStore struct {
	chunks *mongo.Collection
	cfg    *config.Config
}

func NewSearchStore(db *mongo.Database, cfg *config.Config) *SearchStore {
	return &SearchStore{
		chunks: db.Collection("document_chunks"),
		cfg:    cfg,
	}
}

// searchRow is the raw aggregation row. Metadata stays bson.Raw so a
// malformed shape from storage degrades to empty metadata instead of a
// decode failure.
type searchRow struct {
	ID         primitive.ObjectID `bson:"_id"`
	DocumentID primitive.ObjectID `bson:"document_id"`
	Content    string             `bson:"content"`
	ChunkIndex int                `bson:"chunk_index"`
	Metadata   bson.Raw           `bson:"metadata"`
	Similarity float64            `bson:"similarity"`
}

func (r searchRow) toRetrieved() models.RetrievedChunk {
	var meta models.ChunkMetadata
	if len(r.Metadata) > 0 {
		if err := bson.Unmarshal(r.Metadata, &meta); err != nil {
			meta = models.ChunkMetadata{}
		}
	}
	return models.RetrievedChunk{
		ID:         r.ID.Hex(),
		DocumentID: r.DocumentID.Hex(),
		Content:    r.Content,
		ChunkIndex: r.ChunkIndex,
		Metadata:   meta,
		Similarity: r.Similarity,
	}
}

func parseScope(documentID, userID string) (primitive.ObjectID, primitive.ObjectID, error) {
	docID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, fmt.Errorf("invalid document id: %w", err)
	}
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, fmt.Errorf("invalid user id: %w", err)
	}
	return docID, uid, nil
}

var chunkProjection = bson.D{
	{Key: "_id", Value: 1},
	{Key: "document_id", Value: 1},
	{Key: "content", Value: 1},
	{Key: "chunk_index", Value: 1},
	{Key: "metadata", Value: 1},
}

// VectorSearch returns up to limit candidates by cosine similarity,
// ordered descending.
func (ss *SearchStore) VectorSearch(ctx context.Context, documentID, userID string, embedding []float32, limit int) ([]models.RetrievedChunk, error) {
	docID, uid, err := parseScope(documentID, userID)
	if err != nil {
		return nil, err
	}

	projection := append(bson.D{}, chunkProjection...)
	projection = append(projection, bson.E{Key: "similarity", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}})

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: ss.cfg.VectorIndexName},
			{Key: "path", Value: "vector"},
			{Key: "queryVector", Value: embedding},
			{Key: "numCandidates", Value: limit * 10},
			{Key: "limit", Value: limit},
			{Key: "filter", Value: bson.D{
				{Key: "document_id", Value: docID},
				{Key: "user_id", Value: uid},
			}},
		}}},
		{{Key: "$project", Value: projection}},
	}

	return ss.runSearch(ctx, pipeline)
}

// LexicalSearch returns up to limit candidates by full-text relevance.
// May legitimately return no results; callers treat errors as empty.
func (ss *SearchStore) LexicalSearch(ctx context.Context, documentID, userID, query string, limit int) ([]models.RetrievedChunk, error) {
	docID, uid, err := parseScope(documentID, userID)
	if err != nil {
		return nil, err
	}

	projection := append(bson.D{}, chunkProjection...)
	projection = append(projection, bson.E{Key: "similarity", Value: bson.D{{Key: "$meta", Value: "searchScore"}}})

	pipeline := mongo.Pipeline{
		{{Key: "$search", Value: bson.D{
			{Key: "index", Value: ss.cfg.SearchIndexName},
			{Key: "compound", Value: bson.D{
				{Key: "must", Value: bson.A{
					bson.D{{Key: "text", Value: bson.D{
						{Key: "query", Value: query},
						{Key: "path", Value: "content"},
					}}},
				}},
				{Key: "filter", Value: bson.A{
					bson.D{{Key: "equals", Value: bson.D{{Key: "path", Value: "document_id"}, {Key: "value", Value: docID}}}},
					bson.D{{Key: "equals", Value: bson.D{{Key: "path", Value: "user_id"}, {Key: "value", Value: uid}}}},
				}},
			}},
		}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: projection}},
	}

	return ss.runSearch(ctx, pipeline)
}

func (ss *SearchStore) runSearch(ctx context.Context, pipeline mongo.Pipeline) ([]models.RetrievedChunk, error) {
	cursor, err := ss.chunks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.RetrievedChunk
	for cursor.Next(ctx) {
		var row searchRow
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.toRetrieved())
	}
	return out, cursor.Err()
}

// ReplaceDocumentChunks supersedes a document's chunks wholesale:
// delete-all then reinsert-all, each chunk paired 1:1 with its embedding
// in chunk order. Returns the inserted count.
func (ss *SearchStore) ReplaceDocumentChunks(ctx context.Context, documentID, userID string, chunks []models.Chunk, vectors [][]float32) (int, error) {
	docID, uid, err := parseScope(documentID, userID)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("chunk/embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	if _, err := ss.chunks.DeleteMany(ctx, bson.M{"document_id": docID}); err != nil {
		return 0, fmt.Errorf("failed to delete existing chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(chunks))
	for i, ch := range chunks {
		ch.DocumentID = docID
		ch.UserID = uid
		ch.ChunkID = uuid.NewString()
		ch.Vector = vectors[i]
		docs = append(docs, ch)
	}

	res, err := ss.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// DeleteDocumentChunks removes all chunks for a document.
func (ss *SearchStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	docID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}
	_, err = ss.chunks.DeleteMany(ctx, bson.M{"document_id": docID})
	return err
}

// ChunksInOrder loads a document's chunks by chunk index, capped at limit
// characters of content (0 means no cap).
func (ss *SearchStore) ChunksInOrder(ctx context.Context, documentID, userID string, charLimit int) ([]models.Chunk, error) {
	docID, uid, err := parseScope(documentID, userID)
	if err != nil {
		return nil, err
	}

	cursor, err := ss.chunks.Find(ctx,
		bson.M{"document_id": docID, "user_id": uid},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}).SetProjection(bson.M{"vector": 0}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Chunk
	total := 0
	for cursor.Next(ctx) {
		var ch models.Chunk
		if err := cursor.Decode(&ch); err != nil {
			return nil, err
		}
		if charLimit > 0 && total+len(ch.Content) > charLimit {
			break
		}
		total += len(ch.Content)
		out = append(out, ch)
	}
	return out, cursor.Err()
}
