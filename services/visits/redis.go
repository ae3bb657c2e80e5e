// Package visitsvc implements core.VisitCounter.
package visitsvc

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

const (
	pageViewsKey = "academic:visits:page_views"
	visitorsKey  = "academic:visits:visitors" // HyperLogLog of visitor ids
)

type redisCounter struct {
	rdb *redis.Client
}

var _ core.VisitCounter = (*redisCounter)(nil) // interface compliance check

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisCounter(rdb *redis.Client) *redisCounter {
	return &redisCounter{rdb: rdb}
}

func (c *redisCounter) Record(ctx context.Context, visitorID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, pageViewsKey)
	if visitorID != "" {
		pipe.PFAdd(ctx, visitorsKey, visitorID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "recording visit")
	}
	return nil
}

func (c *redisCounter) Stats(ctx context.Context) (core.VisitStats, error) {
	views, err := c.rdb.Get(ctx, pageViewsKey).Int64()
	if err != nil && err != redis.Nil {
		return core.VisitStats{}, errors.Wrap(err, "getting page views")
	}
	visitors, err := c.rdb.PFCount(ctx, visitorsKey).Result()
	if err != nil {
		return core.VisitStats{}, errors.Wrap(err, "counting visitors")
	}
	return core.VisitStats{PageViews: views, UniqueVisitors: visitors}, nil
}
