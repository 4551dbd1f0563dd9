// Package catalog builds source lists from rendition objects in object
// storage. Each object under a title prefix is one whole-stream alternative
// (e.g. title/720p.mp4, title/1080p.mp4), presented to the controller as a
// labeled source-swap list with presigned URLs.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/playscope/playkit/internal/config"
	"github.com/playscope/playkit/pkg/models"
)

// Catalog lists rendition objects and presigns playback URLs
type Catalog struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
}

// New creates a catalog over the configured bucket
func New(cfg config.CatalogConfig) (*Catalog, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("catalog bucket %s does not exist", cfg.BucketName)
	}

	return &Catalog{
		client:     client,
		bucketName: cfg.BucketName,
		urlExpiry:  cfg.URLExpiry,
	}, nil
}

// Sources lists the rendition objects under a title prefix and builds a
// labeled source list. The label is the object's base name without
// extension; kind is inferred from the extension as everywhere else.
func (c *Catalog) Sources(ctx context.Context, title string) ([]models.Source, error) {
	prefix := strings.TrimSuffix(title, "/") + "/"

	var sources []models.Source
	for object := range c.client.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list renditions: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			continue
		}

		presigned, err := c.client.PresignedGetObject(ctx, c.bucketName, object.Key, c.urlExpiry, url.Values{})
		if err != nil {
			return nil, fmt.Errorf("failed to presign %s: %w", object.Key, err)
		}

		sources = append(sources, models.Source{
			URL:   presigned.String(),
			Label: renditionLabel(object.Key),
		})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no renditions found for title %s", title)
	}

	return models.NormalizeSources(sources), nil
}

// Titles lists the top-level title prefixes in the bucket
func (c *Catalog) Titles(ctx context.Context) ([]string, error) {
	var titles []string
	for object := range c.client.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list titles: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			titles = append(titles, strings.TrimSuffix(object.Key, "/"))
		}
	}
	return titles, nil
}

func renditionLabel(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}
