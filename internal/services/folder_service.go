package services

import (
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/models"
)

// FolderService derives the virtual folder hierarchy from flat object keys.
// Nothing is ever stored for a folder; every view is recomputed from a
// listing.
type FolderService struct {
	store StoreClient
	log   zerolog.Logger
}

func NewFolderService(store StoreClient, log zerolog.Logger) *FolderService {
	return &FolderService{store: store, log: log}
}

// ListFolderView returns one level of folders and objects under prefix.
// Zero-size objects are folder placeholder markers and are never shown as
// files.
func (s *FolderService) ListFolderView(ctx context.Context, bucket, prefix string) (*models.FolderView, error) {
	if bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket required")
	}

	raw, err := s.store.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	})
	if err != nil {
		return nil, errs.FromMinio(err, "list objects")
	}

	view := &models.FolderView{
		Bucket:      bucket,
		Prefix:      prefix,
		Breadcrumbs: Breadcrumbs(prefix),
	}
	seen := make(map[string]bool)

	addFolder := func(folderPrefix string) {
		if folderPrefix == "" || seen[folderPrefix] {
			return
		}
		seen[folderPrefix] = true
		name := strings.TrimSuffix(strings.TrimPrefix(folderPrefix, prefix), "/")
		if name == "" {
			return
		}
		view.Folders = append(view.Folders, models.FolderInfo{Name: name, Prefix: folderPrefix})
	}

	for _, obj := range raw {
		// Common prefixes arrive as zero-size entries with a trailing slash.
		if strings.HasSuffix(obj.Key, "/") {
			addFolder(obj.Key)
			continue
		}

		rest := strings.TrimPrefix(obj.Key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			addFolder(prefix + rest[:idx] + "/")
			continue
		}

		if rest == "" || obj.Size == 0 {
			continue
		}
		view.Objects = append(view.Objects, models.ObjectEntry{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return view, nil
}

// Breadcrumbs splits a prefix into navigable segments with cumulative
// prefixes.
func Breadcrumbs(prefix string) []models.Breadcrumb {
	if prefix == "" {
		return nil
	}

	var crumbs []models.Breadcrumb
	path := ""
	for _, part := range strings.Split(strings.TrimSuffix(prefix, "/"), "/") {
		if part == "" {
			continue
		}
		path += part + "/"
		crumbs = append(crumbs, models.Breadcrumb{Label: part, Prefix: path})
	}
	return crumbs
}

// DeleteFolder removes every key under the folder prefix and returns the
// keys that were deleted. A prefix matching nothing is a successful no-op:
// folders have no independent existence to fail to find.
func (s *FolderService) DeleteFolder(ctx context.Context, bucket, folderPrefix string) ([]string, error) {
	if bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket required")
	}

	raw, err := s.store.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    folderPrefix,
		Recursive: true,
	})
	if err != nil {
		return nil, errs.FromMinio(err, "list folder contents")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(raw))
	for _, obj := range raw {
		keys = append(keys, obj.Key)
	}

	failed, err := s.store.RemoveObjects(ctx, bucket, keys)
	if err != nil {
		return nil, errs.FromMinio(err, "delete folder contents")
	}

	if len(failed) == 0 {
		return keys, nil
	}

	failedSet := make(map[string]bool, len(failed))
	for _, key := range failed {
		failedSet[key] = true
		s.log.Error().Str("bucket", bucket).Str("key", key).Msg("folder delete: object not removed")
	}

	removed := make([]string, 0, len(keys)-len(failed))
	for _, key := range keys {
		if !failedSet[key] {
			removed = append(removed, key)
		}
	}
	return removed, nil
}
