package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/models"
)

// PresignUploadTTL bounds write-authorization URLs to a short window; each
// URL is scoped to one exact destination key.
const PresignUploadTTL = 15 * time.Minute

// UploadService writes upload batches into the store and issues presigned
// upload URLs for the direct-to-store path.
type UploadService struct {
	store StoreClient
	log   zerolog.Logger
}

func NewUploadService(store StoreClient, log zerolog.Logger) *UploadService {
	return &UploadService{store: store, log: log}
}

// FailedUpload records one unit that could not be written.
type FailedUpload struct {
	RelativePath string `json:"relativePath"`
	Reason       string `json:"reason"`
}

// BatchResult is the per-item outcome breakdown of one upload batch.
type BatchResult struct {
	SuccessCount int            `json:"successCount"`
	FailCount    int            `json:"failCount"`
	Uploaded     []string       `json:"uploaded"`
	Failed       []FailedUpload `json:"failed,omitempty"`
}

// SaveBatch writes each unit under prefix + its normalized relative path.
// Units are processed in input order; a failed unit is recorded and the
// batch continues. Key collisions silently overwrite; the store has no
// versioning, last write wins.
func (s *UploadService) SaveBatch(ctx context.Context, bucket, prefix string, units []models.UploadUnit) (*BatchResult, error) {
	if bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket required")
	}
	if len(units) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "no files uploaded")
	}

	result := &BatchResult{}
	for _, unit := range units {
		key := prefix + NormalizeRelativePath(unit.RelativePath)
		if err := s.saveUnit(ctx, bucket, key, unit); err != nil {
			s.log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("upload failed")
			result.FailCount++
			result.Failed = append(result.Failed, FailedUpload{
				RelativePath: unit.RelativePath,
				Reason:       err.Error(),
			})
			continue
		}
		result.SuccessCount++
		result.Uploaded = append(result.Uploaded, key)
	}
	return result, nil
}

func (s *UploadService) saveUnit(ctx context.Context, bucket, key string, unit models.UploadUnit) error {
	src, err := unit.Source(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	contentType := unit.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.store.PutObject(ctx, bucket, key, src, unit.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errs.FromMinio(err, "put object")
	}
	return nil
}

// SaveTree resolves a dropped directory tree into upload units and writes
// them as one batch. Traversal happens before any write, so a traversal
// failure aborts the batch instead of leaving it half uploaded.
func (s *UploadService) SaveTree(ctx context.Context, bucket, prefix string, entries []TreeEntry) (*BatchResult, error) {
	units, err := ResolveTree(ctx, entries, DefaultWalkLimit)
	if err != nil {
		return nil, err
	}
	return s.SaveBatch(ctx, bucket, prefix, units)
}

// PresignUpload mints a time-boxed PUT URL for one destination key,
// letting the client transfer bytes directly to the store.
func (s *UploadService) PresignUpload(ctx context.Context, bucket, key string) (*url.URL, error) {
	if bucket == "" || key == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket and objectKey are required")
	}

	u, err := s.store.PresignedPutObject(ctx, bucket, key, PresignUploadTTL)
	if err != nil {
		return nil, errs.FromMinio(err, "presign upload")
	}
	return u, nil
}

// NormalizeRelativePath converts backslashes to forward slashes and strips
// any leading slash, so a client-supplied path always lands under the
// destination prefix.
func NormalizeRelativePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimLeft(p, "/")
}
