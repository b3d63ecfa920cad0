package services

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/search"
)

// MaxExtractableSize caps content extraction; larger objects are indexed as
// metadata-only documents.
const MaxExtractableSize = 10 << 20 // 10 MiB

// extractableTypes is the allow-list of content types eligible for text
// extraction. Matched by prefix, so "text/" covers every text subtype.
var extractableTypes = []string{
	"text/",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/rtf",
	"application/json",
	"application/xml",
}

// Indexer keeps the search index synchronized with object-store contents.
// Webhook notifications are dispatched through a bounded queue drained by a
// fixed worker pool, so a burst of uploads cannot pile up unbounded
// goroutines; a full queue drops the notification with a dead-letter log
// line for manual reindexing.
type Indexer struct {
	store  StoreClient
	search search.Store
	log    zerolog.Logger

	queue chan indexTask
	wg    sync.WaitGroup

	closeOnce sync.Once
}

type indexTask struct {
	bucket string
	key    string
}

// NewIndexer starts the worker pool. Close releases it.
func NewIndexer(store StoreClient, searchStore search.Store, log zerolog.Logger, workers, queueSize int) *Indexer {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	idx := &Indexer{
		store:  store,
		search: searchStore,
		log:    log,
		queue:  make(chan indexTask, queueSize),
	}

	idx.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go idx.worker()
	}
	return idx
}

func (i *Indexer) worker() {
	defer i.wg.Done()
	for task := range i.queue {
		if err := i.IndexObject(context.Background(), task.bucket, task.key); err != nil {
			// Never propagated to the notifier; logged for manual reindexing.
			i.log.Error().Err(err).
				Str("bucket", task.bucket).
				Str("key", task.key).
				Msg("async indexing failed")
		}
	}
}

// Enqueue hands an object to the pool without blocking the caller. Returns
// false when the queue is full and the task was dropped.
func (i *Indexer) Enqueue(bucket, key string) bool {
	select {
	case i.queue <- indexTask{bucket: bucket, key: key}:
		return true
	default:
		i.log.Error().
			Str("bucket", bucket).
			Str("key", key).
			Msg("index queue full, notification dropped")
		return false
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (i *Indexer) Close() {
	i.closeOnce.Do(func() {
		close(i.queue)
	})
	i.wg.Wait()
}

// IndexObject fetches one object and upserts its search document under the
// deterministic id bucket:objectKey. Content within the eligibility gate is
// base64-encoded and routed through the extraction pipeline; everything
// else is indexed metadata-only.
func (i *Indexer) IndexObject(ctx context.Context, bucket, key string) error {
	start := time.Now()

	stat, err := i.store.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return i.failed(bucket, key, start, errs.FromMinio(err, "stat object"))
	}

	contentType := stat.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := search.Document{
		Bucket:      bucket,
		ObjectKey:   key,
		FileName:    baseName(key),
		FilePath:    key,
		Size:        stat.Size,
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
	}

	extract := shouldExtractContent(contentType, stat.Size)
	if extract {
		src, err := i.store.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return i.failed(bucket, key, start, errs.FromMinio(err, "get object"))
		}
		raw, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return i.failed(bucket, key, start, errs.Wrap(errs.KindUnavailable, "read object", err))
		}
		doc.Data = base64.StdEncoding.EncodeToString(raw)
	}

	if err := i.search.Upsert(ctx, doc, extract); err != nil {
		return i.failed(bucket, key, start, err)
	}

	i.log.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int64("size", stat.Size).
		Bool("extracted", extract).
		Dur("duration", time.Since(start)).
		Msg("object indexed")
	return nil
}

func (i *Indexer) failed(bucket, key string, start time.Time, err error) error {
	i.log.Error().Err(err).
		Str("bucket", bucket).
		Str("key", key).
		Dur("duration", time.Since(start)).
		Msg("indexing failed")
	return err
}

// ReindexBucket walks every key in the bucket and indexes each one in
// listing order. A failing key is skipped; the count of successfully
// processed keys is returned.
func (i *Indexer) ReindexBucket(ctx context.Context, bucket string) (int, error) {
	if bucket == "" {
		return 0, errs.New(errs.KindInvalidInput, "bucket required")
	}

	raw, err := i.store.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true})
	if err != nil {
		return 0, errs.FromMinio(err, "list bucket")
	}

	count := 0
	for _, obj := range raw {
		if obj.Key == "" {
			continue
		}
		if err := i.IndexObject(ctx, bucket, obj.Key); err != nil {
			continue // already logged, keep going
		}
		count++
	}

	i.log.Info().Str("bucket", bucket).Int("count", count).Msg("bucket reindexed")
	return count, nil
}

// RemoveFromIndex deletes the document matching (bucket, key) exactly.
func (i *Indexer) RemoveFromIndex(ctx context.Context, bucket, key string) error {
	return i.search.Delete(ctx, bucket, key)
}

func shouldExtractContent(contentType string, size int64) bool {
	if size > MaxExtractableSize {
		return false
	}
	for _, t := range extractableTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}
