package store

import (
	"context"

	"github.com/pagevoice/pagevoice-server/internal/domain"
)

// Chunk summaries are keyed `<asin>:<chunkID>:<provider>` under the entity
// prefix, so all of one book's summaries share a key prefix.

// ChunkKey builds the storage id for one (asin, chunk, provider) tuple.
func ChunkKey(asin, chunkID, provider string) string {
	return asin + ":" + chunkID + ":" + provider
}

// SaveChunkSummary writes the durable record for one synthesis run,
// replacing any previous record for the same tuple.
func (s *Store) SaveChunkSummary(ctx context.Context, summary *domain.ChunkAudioSummary) error {
	key := ChunkKey(summary.ASIN, summary.ChunkID, summary.TTSProvider)
	if err := s.Chunks.Put(ctx, key, summary); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("chunk summary saved", "asin", summary.ASIN, "chunk_id", summary.ChunkID, "provider", summary.TTSProvider)
	}
	return nil
}

// GetChunkSummary retrieves the record for one (asin, chunk, provider) tuple.
func (s *Store) GetChunkSummary(ctx context.Context, asin, chunkID, provider string) (*domain.ChunkAudioSummary, error) {
	return s.Chunks.Get(ctx, ChunkKey(asin, chunkID, provider))
}

// ListChunkSummaries returns every summary recorded for a book, across all
// chunks and providers.
func (s *Store) ListChunkSummaries(ctx context.Context, asin string) ([]domain.ChunkAudioSummary, error) {
	var out []domain.ChunkAudioSummary
	for summary, err := range s.Chunks.ListPrefix(ctx, asin+":") {
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

// DeleteChunkSummary removes the record for one tuple. Idempotent.
func (s *Store) DeleteChunkSummary(ctx context.Context, asin, chunkID, provider string) error {
	return s.Chunks.Delete(ctx, ChunkKey(asin, chunkID, provider))
}
