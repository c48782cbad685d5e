package service

import (
	"context"
	"iter"

	"salez/internal/docstore"
)

// Observer turns a store subscription into a stream of decoded values. It
// stops when its context ends or Close is called.
type Observer[T any] struct {
	sub    *docstore.Subscription
	decode func(ctx context.Context, snaps []docstore.Snapshot) (T, error)
}

func newObserver[T any](sub *docstore.Subscription, decode func(context.Context, []docstore.Snapshot) (T, error)) *Observer[T] {
	return &Observer[T]{sub: sub, decode: decode}
}

// All yields one value per delivered snapshot. A decode error is yielded
// alongside the zero value and does not end the stream.
func (o *Observer[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for snaps := range o.sub.C() {
			v, err := o.decode(ctx, snaps)
			if !yield(v, err) {
				return
			}
		}
	}
}

func (o *Observer[T]) Close() { o.sub.Close() }
