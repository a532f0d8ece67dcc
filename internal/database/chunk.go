package database

import (
	"context"

	"github.com/samber/lo"
)

// DefaultChunkSize bounds the number of ids sent in one IN (...) lookup.
const DefaultChunkSize = 50

// FetchChunked splits ids into groups of at most size and calls fetch once
// per group, sequentially, concatenating the results. Duplicate and empty
// ids are dropped before chunking. The first error stops the walk and is
// returned together with the rows fetched so far.
func FetchChunked[T any](
	ctx context.Context,
	ids []string,
	size int,
	fetch func(ctx context.Context, chunk []string) ([]T, error),
) ([]T, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}

	ids = lo.Compact(lo.Uniq(ids))
	if len(ids) == 0 {
		return nil, nil
	}

	var results []T
	for _, chunk := range lo.Chunk(ids, size) {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		rows, err := fetch(ctx, chunk)
		if err != nil {
			return results, err
		}
		results = append(results, rows...)
	}

	return results, nil
}
