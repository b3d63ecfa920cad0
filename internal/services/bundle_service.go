package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/models"
)

// BundleService assembles a mixed file/folder selection into one archive.
type BundleService struct {
	store StoreClient
	log   zerolog.Logger
}

func NewBundleService(store StoreClient, log zerolog.Logger) *BundleService {
	return &BundleService{store: store, log: log}
}

// IsSingleFile reports whether the selection bypasses archiving: exactly
// one item of kind file is streamed raw under its original name.
func IsSingleFile(items []models.SelectionItem) bool {
	return len(items) == 1 && items[0].Kind == models.SelectionFile
}

// ArchiveName returns a collision-resistant name for the generated archive.
func ArchiveName() string {
	return fmt.Sprintf("download_%d.zip", time.Now().UnixMilli())
}

// ArchiveEntry is one resolved fetch: the object key and the path it
// occupies inside the archive.
type ArchiveEntry struct {
	Key         string
	ArchivePath string
}

// WriteArchive resolves the selection and streams the resulting zip to w.
func (s *BundleService) WriteArchive(ctx context.Context, bucket string, items []models.SelectionItem, w io.Writer) error {
	entries, err := s.ResolveSelection(ctx, bucket, items)
	if err != nil {
		return err
	}
	return s.WriteEntries(ctx, bucket, entries, w)
}

// WriteEntries streams the resolved entries as a zip to w. A failed fetch
// is logged and skipped; the archive still contains whatever succeeded.
func (s *BundleService) WriteEntries(ctx context.Context, bucket string, entries []ArchiveEntry, w io.Writer) error {
	zw := zip.NewWriter(w)
	defer func() { _ = zw.Close() }()

	for _, entry := range entries {
		if err := s.addToArchive(ctx, zw, bucket, entry); err != nil {
			s.log.Error().Err(err).
				Str("bucket", bucket).
				Str("key", entry.Key).
				Msg("archive: skipping item")
		}
	}
	return nil
}

// ResolveSelection validates the selection and expands folders into their
// full descendant object list. A descendant's archive path is re-rooted
// under the folder's display name rather than its storage prefix, so the
// archive mirrors the hierarchy as the user sees it. No object bytes are
// fetched here; callers can still reject the request before streaming.
func (s *BundleService) ResolveSelection(ctx context.Context, bucket string, items []models.SelectionItem) ([]ArchiveEntry, error) {
	if bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket required")
	}
	if len(items) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "empty selection")
	}

	var entries []ArchiveEntry

	for _, item := range items {
		switch item.Kind {
		case models.SelectionFile:
			name := item.DisplayName
			if name == "" {
				name = baseName(item.Key)
			}
			entries = append(entries, ArchiveEntry{Key: item.Key, ArchivePath: name})

		case models.SelectionFolder:
			raw, err := s.store.ListObjects(ctx, bucket, minio.ListObjectsOptions{
				Prefix:    item.Key,
				Recursive: true,
			})
			if err != nil {
				s.log.Error().Err(err).
					Str("bucket", bucket).
					Str("prefix", item.Key).
					Msg("archive: folder listing failed, skipping folder")
				continue
			}
			for _, obj := range raw {
				if strings.HasSuffix(obj.Key, "/") {
					continue // folder placeholder marker
				}
				rel := strings.TrimPrefix(obj.Key, item.Key)
				entries = append(entries, ArchiveEntry{
					Key:         obj.Key,
					ArchivePath: item.DisplayName + "/" + rel,
				})
			}

		default:
			return nil, errs.New(errs.KindInvalidInput, "unknown selection kind: "+string(item.Kind))
		}
	}
	return entries, nil
}

func (s *BundleService) addToArchive(ctx context.Context, zw *zip.Writer, bucket string, entry ArchiveEntry) error {
	src, err := s.store.GetObject(ctx, bucket, entry.Key, minio.GetObjectOptions{})
	if err != nil {
		return errs.FromMinio(err, "get object")
	}
	defer func() { _ = src.Close() }()

	dst, err := zw.Create(entry.ArchivePath)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func baseName(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
