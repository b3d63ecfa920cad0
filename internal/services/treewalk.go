package services

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/anuwat/filehub/internal/models"
)

// DefaultWalkLimit bounds how many sibling entries are resolved
// concurrently at each directory level.
const DefaultWalkLimit = 8

// TreeEntry is one node of a dropped directory tree. Directory readers are
// paged: ReadEntries must be called repeatedly until it returns an empty
// batch; a single call is not guaranteed to return the full contents.
type TreeEntry interface {
	Name() string
	IsDir() bool

	// Open returns the file content; only valid when !IsDir().
	Open(ctx context.Context) (io.ReadCloser, error)
	// Size and ContentType describe the file; only valid when !IsDir().
	Size() int64
	ContentType() string

	// ReadEntries returns the next batch of children; only valid when
	// IsDir(). An empty batch signals the end of the directory.
	ReadEntries(ctx context.Context) ([]TreeEntry, error)
}

// ResolveTree flattens a set of dropped entries into upload units carrying
// full relative paths. Siblings at one level resolve concurrently (bounded
// by limit) and the walk joins every sibling before returning, so the
// caller never observes a partially aggregated level.
func ResolveTree(ctx context.Context, entries []TreeEntry, limit int) ([]models.UploadUnit, error) {
	if limit <= 0 {
		limit = DefaultWalkLimit
	}
	w := &treeWalker{limit: limit}
	return w.resolveLevel(ctx, entries, "")
}

type treeWalker struct {
	limit int
}

func (w *treeWalker) resolveLevel(ctx context.Context, entries []TreeEntry, basePath string) ([]models.UploadUnit, error) {
	var (
		mu    sync.Mutex
		units []models.UploadUnit
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.limit)

	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			resolved, err := w.resolveEntry(ctx, entry, basePath)
			if err != nil {
				return err
			}
			mu.Lock()
			units = append(units, resolved...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

func (w *treeWalker) resolveEntry(ctx context.Context, entry TreeEntry, basePath string) ([]models.UploadUnit, error) {
	if !entry.IsDir() {
		return []models.UploadUnit{{
			Source:       entry.Open,
			RelativePath: joinPath(basePath, entry.Name()),
			Size:         entry.Size(),
			ContentType:  entry.ContentType(),
		}}, nil
	}

	dirPath := joinPath(basePath, entry.Name())
	var units []models.UploadUnit
	for {
		batch, err := entry.ReadEntries(ctx)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return units, nil
		}
		resolved, err := w.resolveLevel(ctx, batch, dirPath)
		if err != nil {
			return nil, err
		}
		units = append(units, resolved...)
	}
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
