package store

import (
	"context"
	"fmt"

	"github.com/oljefondvakt/fundwatch/internal/domain"
)

// Chunk splits items into consecutive slices of at most size elements.
func Chunk(items []*domain.Investment, size int) [][]*domain.Investment {
	if size <= 0 {
		size = MaxBatchWrite
	}
	chunks := make([][]*domain.Investment, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// WriteChunked writes items through w in MaxBatchWrite sized batches.
// Chunks are committed independently; on failure it returns the number of
// items already written together with the error.
func WriteChunked(ctx context.Context, w BatchWriter, items []*domain.Investment) (int, error) {
	written := 0
	for _, chunk := range Chunk(items, MaxBatchWrite) {
		if err := w.BatchWrite(ctx, chunk); err != nil {
			return written, fmt.Errorf("writing chunk at offset %d: %w", written, err)
		}
		written += len(chunk)
	}
	return written, nil
}
