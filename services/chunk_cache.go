package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"docai-platform/internal/logger"
	"docai-platform/models"
	"docai-platform/utils"

	"github.com/redis/go-redis/v9"
)

const (
	queryCacheTTL   = 30 * time.Minute
	summaryCacheTTL = 24 * time.Hour
)

// ChunkCacheService caches retrieval results and summaries in Redis.
// Payloads are brotli-compressed before storage. The cache is an
// accelerator only: every miss or Redis error falls through to the
// real pipeline.
type ChunkCacheService struct {
	rdb *redis.Client
}

func NewChunkCacheService(rdb *redis.Client) *ChunkCacheService {
	return &ChunkCacheService{rdb: rdb}
}

// cachedPayload wraps the compressed body with its compression flag.
type cachedPayload struct {
	Data       []byte `json:"data"`
	Compressed bool   `json:"compressed"`
}

func queryCacheKey(documentID, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("rag:query:%s:%s", documentID, hex.EncodeToString(sum[:16]))
}

func summaryCacheKey(documentID, style string) string {
	return fmt.Sprintf("rag:summary:%s:%s", documentID, style)
}

func (cc *ChunkCacheService) set(ctx context.Context, key string, body []byte, ttl time.Duration) {
	data, compressed, err := utils.CompressText(string(body))
	if err != nil {
		logger.Warn("Cache compression failed", "key", key, "error", err.Error())
		return
	}
	payload, err := json.Marshal(cachedPayload{Data: data, Compressed: compressed})
	if err != nil {
		return
	}
	if err := cc.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		logger.Warn("Cache write failed", "key", key, "error", err.Error())
	}
}

func (cc *ChunkCacheService) get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := cc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	var payload cachedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	body, err := utils.DecompressText(payload.Data, payload.Compressed)
	if err != nil {
		return nil, false
	}
	return []byte(body), true
}

// CacheQueryResult stores the reranked chunks for a query.
func (cc *ChunkCacheService) CacheQueryResult(ctx context.Context, documentID, query string, chunks []models.RetrievedChunk) {
	body, err := json.Marshal(chunks)
	if err != nil {
		return
	}
	cc.set(ctx, queryCacheKey(documentID, query), body, queryCacheTTL)
}

// GetCachedQueryResult returns cached reranked chunks, if present.
func (cc *ChunkCacheService) GetCachedQueryResult(ctx context.Context, documentID, query string) ([]models.RetrievedChunk, bool) {
	body, ok := cc.get(ctx, queryCacheKey(documentID, query))
	if !ok {
		return nil, false
	}
	var chunks []models.RetrievedChunk
	if err := json.Unmarshal(body, &chunks); err != nil {
		return nil, false
	}
	return chunks, true
}

// CacheSummary stores a generated summary for a document and style.
func (cc *ChunkCacheService) CacheSummary(ctx context.Context, documentID, style, summary string) {
	cc.set(ctx, summaryCacheKey(documentID, style), []byte(summary), summaryCacheTTL)
}

// GetCachedSummary returns a cached summary, if present.
func (cc *ChunkCacheService) GetCachedSummary(ctx context.Context, documentID, style string) (string, bool) {
	body, ok := cc.get(ctx, summaryCacheKey(documentID, style))
	if !ok {
		return "", false
	}
	return string(body), true
}

// InvalidateDocument drops all cached entries for a document. Called on
// reprocess and delete.
func (cc *ChunkCacheService) InvalidateDocument(ctx context.Context, documentID string) {
	for _, pattern := range []string{
		fmt.Sprintf("rag:query:%s:*", documentID),
		fmt.Sprintf("rag:summary:%s:*", documentID),
	} {
		iter := cc.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := cc.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Warn("Cache invalidation failed", "key", iter.Val(), "error", err.Error())
			}
		}
		if err := iter.Err(); err != nil {
			logger.Warn("Cache scan failed", "pattern", pattern, "error", err.Error())
		}
	}
}
