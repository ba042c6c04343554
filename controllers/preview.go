package controllers

import (
	"context"

	"stylestudioapi/logger"
	"stylestudioapi/models"
	"stylestudioapi/services"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"
)

const presignConcurrency = 8

type ItemOut struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    models.Category `json:"category,omitempty"`
	MIMEType    string          `json:"mime_type"`
	PreviewURL  string          `json:"preview_url"`
	Placeholder bool            `json:"placeholder"`
}

// urlResolver turns bucket keys into readable links, preferring the cache and
// falling back to a direct presign when the cache itself fails.
type urlResolver struct {
	cache  services.URLCacheServiceProvider
	aws    services.AWSServiceProvider
	bucket string
	log    *logger.Logger
}

func (r urlResolver) readURL(ctx context.Context, objectKey string) string {
	if objectKey == "" {
		return ""
	}
	url, err := r.cache.GetReadURL(ctx, objectKey)
	if err == nil {
		return url
	}
	r.log.Warn("url cache failed, presigning directly", "object_key", objectKey, "error", err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_type", "cache_system")
		scope.SetExtra("objectKey", objectKey)
		sentry.CaptureException(err)
	})

	fallbackUrl, err := r.aws.GetPresignedR2FileReadURL(ctx, r.bucket, objectKey)
	if err != nil {
		r.log.Error("direct presign failed", "object_key", objectKey, "error", err)
		sentry.CaptureException(err)
		return ""
	}
	return fallbackUrl
}

func (r urlResolver) item(ctx context.Context, category models.Category, item models.CatalogueItem) ItemOut {
	out := ItemOut{
		ID:          item.ID,
		Name:        item.Name,
		Category:    category,
		MIMEType:    item.Image.MIMEType,
		Placeholder: item.Image.IsPlaceholder(),
	}
	switch {
	case item.Image.IsStoredObject():
		out.PreviewURL = r.readURL(ctx, item.Image.URL)
	default:
		out.PreviewURL = item.Image.URL
	}
	return out
}

// items presigns concurrently and keeps the input order.
func (r urlResolver) items(ctx context.Context, category models.Category, items []models.CatalogueItem) []ItemOut {
	out := make([]ItemOut, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(presignConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out[i] = r.item(gctx, category, item)
			return nil
		})
	}
	g.Wait()
	return out
}

// keys presigns a list of object keys concurrently, keeping the order.
func (r urlResolver) keys(ctx context.Context, keys []string) []string {
	out := make([]string, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(presignConcurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			out[i] = r.readURL(gctx, key)
			return nil
		})
	}
	g.Wait()
	return out
}
