// Package cache keeps dashboard report results in Redis for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/report"
)

const keyPrefix = "reports:"

// ReportSource is the uncached reader, normally *report.Reader.
type ReportSource interface {
	Summary(ctx context.Context, from, to time.Time) (*report.SalesSummary, error)
	TopProducts(ctx context.Context, since time.Time, limit int) ([]report.ProductSales, error)
	DailyTotals(ctx context.Context, since time.Time) ([]report.DailyTotal, error)
	ByPaymentMethod(ctx context.Context, from, to time.Time) ([]report.PaymentTotal, error)
	LowStock(ctx context.Context) ([]models.Product, error)
	InventoryValue(ctx context.Context) (*report.InventorySummary, error)
	StockValueByCategory(ctx context.Context) ([]report.CategoryStock, error)
}

// CachedReports is a read-through cache in front of a ReportSource. Redis failures are
// logged and the source is queried instead.
type CachedReports struct {
	source ReportSource
	redis  *redis.Client
	ttl    time.Duration
}

func NewCachedReports(source ReportSource, rdb *redis.Client, ttl time.Duration) *CachedReports {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedReports{
		source: source,
		redis:  rdb,
		ttl:    ttl,
	}
}

func getOrLoad[T any](ctx context.Context, c *CachedReports, key string, load func() (T, error)) (T, error) {
	data, err := c.redis.Get(ctx, key).Bytes()

	switch {
	case err == nil:
		var cached T
		if err := json.Unmarshal(data, &cached); err != nil {
			log.Printf("Failed to unmarshal cached %s (continuing with DB): %v", key, err)
			break
		}
		return cached, nil

	case errors.Is(err, redis.Nil):

	default:
		log.Printf("Redis error (continuing with DB): %v", err)
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	jsonData, err := json.Marshal(value)
	if err != nil {
		log.Printf("Failed to marshal %s: %v", key, err)
		return value, nil
	}

	if err := c.redis.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		log.Printf("Failed to cache %s: %v", key, err)
	}

	return value, nil
}

func timeKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func (c *CachedReports) Summary(ctx context.Context, from, to time.Time) (*report.SalesSummary, error) {
	key := fmt.Sprintf("%ssummary:%s:%s", keyPrefix, timeKey(from), timeKey(to))
	return getOrLoad(ctx, c, key, func() (*report.SalesSummary, error) {
		return c.source.Summary(ctx, from, to)
	})
}

func (c *CachedReports) TopProducts(ctx context.Context, since time.Time, limit int) ([]report.ProductSales, error) {
	key := fmt.Sprintf("%stop:%s:%d", keyPrefix, timeKey(since), limit)
	return getOrLoad(ctx, c, key, func() ([]report.ProductSales, error) {
		return c.source.TopProducts(ctx, since, limit)
	})
}

func (c *CachedReports) DailyTotals(ctx context.Context, since time.Time) ([]report.DailyTotal, error) {
	key := fmt.Sprintf("%sdaily:%s", keyPrefix, timeKey(since))
	return getOrLoad(ctx, c, key, func() ([]report.DailyTotal, error) {
		return c.source.DailyTotals(ctx, since)
	})
}

func (c *CachedReports) ByPaymentMethod(ctx context.Context, from, to time.Time) ([]report.PaymentTotal, error) {
	key := fmt.Sprintf("%spayments:%s:%s", keyPrefix, timeKey(from), timeKey(to))
	return getOrLoad(ctx, c, key, func() ([]report.PaymentTotal, error) {
		return c.source.ByPaymentMethod(ctx, from, to)
	})
}

func (c *CachedReports) LowStock(ctx context.Context) ([]models.Product, error) {
	return getOrLoad(ctx, c, keyPrefix+"low-stock", func() ([]models.Product, error) {
		return c.source.LowStock(ctx)
	})
}

func (c *CachedReports) InventoryValue(ctx context.Context) (*report.InventorySummary, error) {
	return getOrLoad(ctx, c, keyPrefix+"inventory", func() (*report.InventorySummary, error) {
		return c.source.InventoryValue(ctx)
	})
}

func (c *CachedReports) StockValueByCategory(ctx context.Context) ([]report.CategoryStock, error) {
	return getOrLoad(ctx, c, keyPrefix+"categories", func() ([]report.CategoryStock, error) {
		return c.source.StockValueByCategory(ctx)
	})
}

// Invalidate drops every cached report. Called after checkouts and catalog writes.
func (c *CachedReports) Invalidate(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("Failed to scan report cache: %v", err)
		return
	}

	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("Failed to delete report cache: %v", err)
	}
}
