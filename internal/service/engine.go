package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/cache"
	"github.com/livestock-import-api/internal/docstore"
	"github.com/livestock-import-api/internal/models"
)

// ProgressObserver receives batch persistence progress. A run opens with a
// zero-value Progress that resets the consumer's surface, then Progress fires
// once per committed chunk with a monotonically non-decreasing current; Done
// fires once after the last chunk and is distinct from per-chunk progress.
type ProgressObserver interface {
	Progress(p models.Progress)
	Done(total int)
}

// NopObserver discards progress events.
type NopObserver struct{}

func (NopObserver) Progress(models.Progress) {}
func (NopObserver) Done(int)                 {}

// BatchEngine writes a parsed record list to the document store in bounded
// chunks. Chunks are strictly sequential, never concurrent: the backend's
// write-rate assumptions stay intact and progress stays monotonic. A chunk
// failure aborts the remaining chunks; chunks already written stay written,
// there is no compensating rollback.
type BatchEngine struct {
	store     docstore.Store
	cache     *cache.Cache
	chunkSize int
	log       zerolog.Logger
}

// NewBatchEngine creates an engine with the given chunk size.
func NewBatchEngine(store docstore.Store, cch *cache.Cache, chunkSize int, log zerolog.Logger) *BatchEngine {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &BatchEngine{
		store:     store,
		cache:     cch,
		chunkSize: chunkSize,
		log:       log.With().Str("component", "batch-engine").Logger(),
	}
}

// Persist writes docs into collection. Each chunk is one multi-path update
// with freshly generated destination keys; after each chunk the observer is
// notified and the read-side cache entries for the collection are dropped.
// The context is checked between chunks, which is the engine's cooperative
// yield point. Returns the number of records written, which on error counts
// only the chunks that committed.
func (e *BatchEngine) Persist(ctx context.Context, collection, programme string, docs []map[string]interface{}, obs ProgressObserver) (int, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	total := len(docs)
	written := 0
	// Opening reset; the run's size reaches the observer with the first
	// committed chunk
	obs.Progress(models.Progress{})

	for start := 0; start < total; start += e.chunkSize {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		end := start + e.chunkSize
		if end > total {
			end = total
		}
		chunk := docs[start:end]

		updates := make(map[string]interface{}, len(chunk))
		for _, doc := range chunk {
			key := e.store.GenerateKey(collection)
			updates[docstore.Path(collection, key)] = doc
		}

		if err := e.store.MultiPathUpdate(ctx, updates); err != nil {
			e.log.Error().Err(err).
				Str("collection", collection).
				Int("written", written).
				Int("chunk_size", len(chunk)).
				Msg("Chunk write failed, aborting remaining chunks")
			return written, fmt.Errorf("chunk write failed after %d of %d records: %w", written, total, err)
		}

		written = end
		obs.Progress(models.Progress{Current: written, Total: total})
		e.invalidate(collection, programme)

		e.log.Debug().
			Str("collection", collection).
			Int("current", written).
			Int("total", total).
			Msg("Chunk committed")
	}

	obs.Done(total)
	return written, nil
}

// invalidate drops the cached reads the write made stale: the
// programme-filtered entry and the unfiltered one.
func (e *BatchEngine) invalidate(collection, programme string) {
	if e.cache == nil {
		return
	}
	e.cache.Invalidate(cache.BuildKey("records", collection))
	if programme != "" {
		e.cache.Invalidate(cache.BuildKey("records", collection, programme))
	}
}
