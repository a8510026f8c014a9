package services

import (
	"context"
	"errors"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
)

// resolver maps a natural key to a row id: in-memory cache, then a lookup query, then an
// insert. One resolver lives for a single ingestion call, so each distinct key costs at
// most one find and one create per document.
type resolver[K comparable, V any] struct {
	ids map[K]int64

	// find returns apperrors.ErrNotFound when no row has this key.
	find   func(ctx context.Context, key K) (int64, error)
	create func(ctx context.Context, key K, v V) (int64, error)
	// onFound runs when find hits an existing row (not on cache hits).
	onFound func(ctx context.Context, id int64, v V) error

	created int
}

func newResolver[K comparable, V any](
	find func(ctx context.Context, key K) (int64, error),
	create func(ctx context.Context, key K, v V) (int64, error),
) *resolver[K, V] {
	return &resolver[K, V]{
		ids:    make(map[K]int64),
		find:   find,
		create: create,
	}
}

func (r *resolver[K, V]) resolve(ctx context.Context, key K, v V) (int64, error) {
	if id, ok := r.ids[key]; ok {
		return id, nil
	}

	id, err := r.find(ctx, key)
	switch {
	case err == nil:
		if r.onFound != nil {
			if err := r.onFound(ctx, id, v); err != nil {
				return 0, err
			}
		}
	case errors.Is(err, apperrors.ErrNotFound):
		id, err = r.create(ctx, key, v)
		if err != nil {
			return 0, err
		}
		r.created++
	default:
		return 0, err
	}

	r.ids[key] = id
	return id, nil
}

// len returns the number of distinct keys resolved so far.
func (r *resolver[K, V]) len() int {
	return len(r.ids)
}
