package redisx

import (
	"context"
	"github.com/redis/go-redis/v9"
)

// Deduper claims dedup keys under one service namespace.
type Deduper struct {
	Client  *redis.Client
	Service string
}

func (d *Deduper) Claim(ctx context.Context, id string) (bool, error) {
	return Claim(ctx, d.Client, DedupKey(d.Service, id), TTLDedup)
}

func (d *Deduper) Release(ctx context.Context, id string) error {
	return Release(ctx, d.Client, DedupKey(d.Service, id))
}
