package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/services"
	"github.com/anuwat/filehub/internal/utils"
)

// BucketsHandler manages bucket lifecycle and bucket-level settings. All
// mutating operations require the admin role.
type BucketsHandler struct {
	store   services.StoreClient
	admin   services.StoreAdminClient
	indexer *services.Indexer
	log     zerolog.Logger
}

func NewBucketsHandler(store services.StoreClient, admin services.StoreAdminClient, indexer *services.Indexer, log zerolog.Logger) *BucketsHandler {
	return &BucketsHandler{store: store, admin: admin, indexer: indexer, log: log}
}

type bucketSummary struct {
	Name          string `json:"name"`
	CreationDate  string `json:"creationDate"`
	Size          uint64 `json:"size"`
	FormattedSize string `json:"formattedSize"`
}

// List returns all buckets with their usage sizes. Usage data is served by
// the admin API and may lag or be unavailable; sizes degrade to zero rather
// than failing the listing.
func (h *BucketsHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	buckets, err := h.store.ListBuckets(ctx)
	if err != nil {
		return respondError(c, errs.FromMinio(err, "list buckets"))
	}

	var sizes map[string]uint64
	if usage, err := h.admin.DataUsageInfo(ctx); err == nil {
		sizes = usage.BucketSizes
	} else {
		h.log.Warn().Err(err).Msg("data usage unavailable, bucket sizes omitted")
	}

	summaries := make([]bucketSummary, 0, len(buckets))
	for _, b := range buckets {
		size := sizes[b.Name]
		summaries = append(summaries, bucketSummary{
			Name:          b.Name,
			CreationDate:  b.CreationDate.Format("2006-01-02T15:04:05Z07:00"),
			Size:          size,
			FormattedSize: utils.FormatBytes(size),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"buckets": summaries})
}

// Create makes a new bucket.
func (h *BucketsHandler) Create(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	var req struct {
		Name   string `json:"name"`
		Region string `json:"region"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Name) < 3 || len(req.Name) > 63 {
		return echo.NewHTTPError(http.StatusBadRequest, "bucket name must be between 3 and 63 characters")
	}

	ctx := c.Request().Context()
	if err := h.store.MakeBucket(ctx, req.Name, minio.MakeBucketOptions{Region: req.Region}); err != nil {
		return respondError(c, errs.FromMinio(err, "create bucket"))
	}

	h.log.Info().Str("bucket", req.Name).Msg("bucket created")
	return c.JSON(http.StatusCreated, map[string]string{"name": req.Name})
}

// Delete empties the bucket and removes it. The emptied-object count is
// returned so the caller can see what the delete swept away.
func (h *BucketsHandler) Delete(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")
	ctx := c.Request().Context()

	raw, err := h.store.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true})
	if err != nil {
		return respondError(c, errs.FromMinio(err, "list bucket contents"))
	}

	removed := 0
	if len(raw) > 0 {
		keys := make([]string, 0, len(raw))
		for _, obj := range raw {
			keys = append(keys, obj.Key)
		}
		failed, err := h.store.RemoveObjects(ctx, bucket, keys)
		if err != nil {
			return respondError(c, errs.FromMinio(err, "empty bucket"))
		}
		if len(failed) > 0 {
			return respondError(c, errs.New(errs.KindUnavailable, "bucket not emptied, some objects could not be removed"))
		}
		removed = len(keys)
	}

	if err := h.store.RemoveBucket(ctx, bucket); err != nil {
		return respondError(c, errs.FromMinio(err, "remove bucket"))
	}

	h.log.Info().Str("bucket", bucket).Int("removedObjects", removed).Msg("bucket deleted")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted":        bucket,
		"removedObjects": removed,
	})
}

// Stats returns the object count and total size for one bucket. Folder
// placeholder markers do not count as objects.
func (h *BucketsHandler) Stats(c echo.Context) error {
	bucket := c.Param("bucket")
	ctx := c.Request().Context()

	raw, err := h.store.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true})
	if err != nil {
		return respondError(c, errs.FromMinio(err, "list bucket contents"))
	}

	var count int
	var total int64
	for _, obj := range raw {
		if strings.HasSuffix(obj.Key, "/") || obj.Size == 0 {
			continue
		}
		count++
		total += obj.Size
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"bucket":        bucket,
		"objectCount":   count,
		"totalSize":     total,
		"formattedSize": utils.FormatFileSize(total),
	})
}

// GetPolicy returns the raw bucket policy JSON, or an empty policy when
// none is set.
func (h *BucketsHandler) GetPolicy(c echo.Context) error {
	bucket := c.Param("bucket")

	policy, err := h.store.GetBucketPolicy(c.Request().Context(), bucket)
	if err != nil {
		return respondError(c, errs.FromMinio(err, "get bucket policy"))
	}

	return c.JSON(http.StatusOK, map[string]string{
		"bucket": bucket,
		"policy": policy,
	})
}

// SetPolicy applies one of the canned access policies to the bucket.
func (h *BucketsHandler) SetPolicy(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")
	var req struct {
		Access string `json:"access"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	policy, err := cannedPolicy(bucket, req.Access)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.store.SetBucketPolicy(c.Request().Context(), bucket, policy); err != nil {
		return respondError(c, errs.FromMinio(err, "set bucket policy"))
	}

	h.log.Info().Str("bucket", bucket).Str("access", req.Access).Msg("bucket policy updated")
	return c.JSON(http.StatusOK, map[string]string{"bucket": bucket, "access": req.Access})
}

// cannedPolicy builds the policy document for an access level. "private"
// maps to the empty policy, which MinIO treats as policy removal.
func cannedPolicy(bucket, access string) (string, error) {
	switch access {
	case "private":
		return "", nil
	case "public-read":
		return `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"AWS": ["*"]},
      "Action": ["s3:GetObject"],
      "Resource": ["arn:aws:s3:::` + bucket + `/*"]
    }
  ]
}`, nil
	case "authenticated-read":
		return `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"AWS": ["arn:aws:iam::*:*"]},
      "Action": ["s3:GetObject"],
      "Resource": ["arn:aws:s3:::` + bucket + `/*"]
    }
  ]
}`, nil
	default:
		return "", errs.New(errs.KindInvalidInput, "unknown access level: "+access)
	}
}

// Reindex rebuilds the search index for one bucket.
func (h *BucketsHandler) Reindex(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")
	count, err := h.indexer.ReindexBucket(c.Request().Context(), bucket)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"bucket":  bucket,
		"indexed": count,
	})
}
