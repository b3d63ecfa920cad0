package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/models"
	"github.com/anuwat/filehub/internal/services"
)

// ShareLinkDefaultTTL applies when the client does not ask for a specific
// expiry. Presigned URLs cannot outlive seven days.
const (
	ShareLinkDefaultTTL = 24 * time.Hour
	ShareLinkMaxTTL     = 7 * 24 * time.Hour
)

// StorageHandler exposes the virtual file browser: folder views, uploads,
// downloads and deletes.
type StorageHandler struct {
	store   services.StoreClient
	folders *services.FolderService
	uploads *services.UploadService
	bundles *services.BundleService
	indexer *services.Indexer
	log     zerolog.Logger
}

func NewStorageHandler(
	store services.StoreClient,
	folders *services.FolderService,
	uploads *services.UploadService,
	bundles *services.BundleService,
	indexer *services.Indexer,
	log zerolog.Logger,
) *StorageHandler {
	return &StorageHandler{
		store:   store,
		folders: folders,
		uploads: uploads,
		bundles: bundles,
		indexer: indexer,
		log:     log,
	}
}

// Browse returns one level of the virtual hierarchy under ?prefix.
func (h *StorageHandler) Browse(c echo.Context) error {
	bucket := c.Param("bucket")
	prefix := c.QueryParam("prefix")

	view, err := h.folders.ListFolderView(c.Request().Context(), bucket, prefix)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Upload relays a multipart batch into the store. Each part's filename
// carries the path relative to the drop root; ?prefix selects the
// destination folder.
func (h *StorageHandler) Upload(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")
	prefix := c.QueryParam("prefix")

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files uploaded")
	}

	units := make([]models.UploadUnit, 0, len(files))
	for _, fh := range files {
		units = append(units, multipartUnit(fh))
	}

	result, err := h.uploads.SaveBatch(c.Request().Context(), bucket, prefix, units)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func multipartUnit(fh *multipart.FileHeader) models.UploadUnit {
	return models.UploadUnit{
		Source: func(ctx context.Context) (io.ReadCloser, error) {
			return fh.Open()
		},
		RelativePath: fh.Filename,
		Size:         fh.Size,
		ContentType:  fh.Header.Get("Content-Type"),
	}
}

// PresignUpload mints a direct-to-store PUT URL for one destination key.
func (h *StorageHandler) PresignUpload(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")

	var req struct {
		ObjectKey string `json:"objectKey"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	u, err := h.uploads.PresignUpload(c.Request().Context(), bucket, req.ObjectKey)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"url":       u.String(),
		"objectKey": req.ObjectKey,
	})
}

// Download streams a single object as an attachment.
func (h *StorageHandler) Download(c echo.Context) error {
	bucket := c.Param("bucket")
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	ctx := c.Request().Context()
	info, err := h.store.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return respondError(c, errs.FromMinio(err, "stat object"))
	}
	obj, err := h.store.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return respondError(c, errs.FromMinio(err, "get object"))
	}
	defer func() { _ = obj.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", baseName(key)))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	return c.Stream(http.StatusOK, contentType, obj)
}

// DownloadBundle streams a mixed selection. A selection of exactly one file
// bypasses archiving and streams the object raw; anything else becomes a
// zip archive built on the fly.
func (h *StorageHandler) DownloadBundle(c echo.Context) error {
	bucket := c.Param("bucket")

	var req struct {
		Items []models.SelectionItem `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty selection")
	}

	if services.IsSingleFile(req.Items) {
		return h.streamSingle(c, bucket, req.Items[0])
	}

	// Resolve before committing the status so a bad selection is still a
	// 400 rather than a 200 carrying an empty archive.
	entries, err := h.bundles.ResolveSelection(c.Request().Context(), bucket, req.Items)
	if err != nil {
		return respondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", services.ArchiveName()))
	c.Response().Header().Set(echo.HeaderContentType, "application/zip")
	c.Response().WriteHeader(http.StatusOK)

	if err := h.bundles.WriteEntries(c.Request().Context(), bucket, entries, c.Response().Writer); err != nil {
		// Headers are gone; all we can do is log.
		h.log.Error().Err(err).Str("bucket", bucket).Msg("bundle streaming failed")
	}
	return nil
}

func (h *StorageHandler) streamSingle(c echo.Context, bucket string, item models.SelectionItem) error {
	ctx := c.Request().Context()
	info, err := h.store.StatObject(ctx, bucket, item.Key, minio.StatObjectOptions{})
	if err != nil {
		return respondError(c, errs.FromMinio(err, "stat object"))
	}
	obj, err := h.store.GetObject(ctx, bucket, item.Key, minio.GetObjectOptions{})
	if err != nil {
		return respondError(c, errs.FromMinio(err, "get object"))
	}
	defer func() { _ = obj.Close() }()

	name := item.DisplayName
	if name == "" {
		name = baseName(item.Key)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	return c.Stream(http.StatusOK, contentType, obj)
}

// DeleteObject removes one object and evicts it from the search index.
func (h *StorageHandler) DeleteObject(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	ctx := c.Request().Context()
	if err := h.store.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return respondError(c, errs.FromMinio(err, "remove object"))
	}

	// Index eviction is best effort; the object is already gone.
	if err := h.indexer.RemoveFromIndex(ctx, bucket, key); err != nil {
		h.log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("index eviction failed")
	}

	return c.JSON(http.StatusOK, map[string]string{"deleted": key})
}

// DeleteFolder removes every object under ?prefix and evicts each removed
// key from the search index.
func (h *StorageHandler) DeleteFolder(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")
	prefix := c.QueryParam("prefix")
	if prefix == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prefix is required")
	}

	ctx := c.Request().Context()
	removed, err := h.folders.DeleteFolder(ctx, bucket, prefix)
	if err != nil {
		return respondError(c, err)
	}

	for _, key := range removed {
		if err := h.indexer.RemoveFromIndex(ctx, bucket, key); err != nil {
			h.log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("index eviction failed")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"deletedCount": len(removed),
		"deleted":      removed,
	})
}

// ObjectInfo returns metadata and tags for one object.
func (h *StorageHandler) ObjectInfo(c echo.Context) error {
	bucket := c.Param("bucket")
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	ctx := c.Request().Context()
	info, err := h.store.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return respondError(c, errs.FromMinio(err, "stat object"))
	}

	var tagMap map[string]string
	if objTags, err := h.store.GetObjectTagging(ctx, bucket, key, minio.GetObjectTaggingOptions{}); err == nil && objTags != nil {
		tagMap = objTags.ToMap()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"bucket":       bucket,
		"key":          key,
		"size":         info.Size,
		"contentType":  info.ContentType,
		"etag":         info.ETag,
		"lastModified": info.LastModified,
		"metadata":     info.UserMetadata,
		"tags":         tagMap,
	})
}

// ShareLink mints a presigned GET URL for one existing object. Expiry
// defaults to a day and must stay within the presign protocol limits.
func (h *StorageHandler) ShareLink(c echo.Context) error {
	if _, err := RequireAdmin(c); err != nil {
		return err
	}

	bucket := c.Param("bucket")

	var req struct {
		Key           string `json:"key"`
		ExpirySeconds int64  `json:"expirySeconds"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	expiry := ShareLinkDefaultTTL
	if req.ExpirySeconds != 0 {
		if req.ExpirySeconds < 1 || time.Duration(req.ExpirySeconds)*time.Second > ShareLinkMaxTTL {
			return echo.NewHTTPError(http.StatusBadRequest, "expirySeconds must be between 1 second and 7 days")
		}
		expiry = time.Duration(req.ExpirySeconds) * time.Second
	}

	ctx := c.Request().Context()
	// Presigning is local signing and succeeds for any key; stat first so
	// a missing object is a 404 instead of a dead link.
	if _, err := h.store.StatObject(ctx, bucket, req.Key, minio.StatObjectOptions{}); err != nil {
		return respondError(c, errs.FromMinio(err, "stat object"))
	}

	u, err := h.store.PresignedGetObject(ctx, bucket, req.Key, expiry, nil)
	if err != nil {
		return respondError(c, errs.FromMinio(err, "presign download"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"url":       u.String(),
		"expiresAt": time.Now().Add(expiry).UTC(),
	})
}

func baseName(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
