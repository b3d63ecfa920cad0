package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/models"
)

func objectBody(content string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(content))
}

func readZip(t *testing.T, buf *bytes.Buffer) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	contents := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(data)
	}
	return contents
}

func TestIsSingleFile(t *testing.T) {
	assert.True(t, IsSingleFile([]models.SelectionItem{{Kind: models.SelectionFile, Key: "a.txt"}}))
	assert.False(t, IsSingleFile([]models.SelectionItem{{Kind: models.SelectionFolder, Key: "a/"}}))
	assert.False(t, IsSingleFile([]models.SelectionItem{
		{Kind: models.SelectionFile, Key: "a.txt"},
		{Kind: models.SelectionFile, Key: "b.txt"},
	}))
	assert.False(t, IsSingleFile(nil))
}

func TestArchiveName(t *testing.T) {
	name := ArchiveName()
	assert.True(t, strings.HasPrefix(name, "download_"))
	assert.True(t, strings.HasSuffix(name, ".zip"))
}

func TestWriteArchive_MixedSelection(t *testing.T) {
	store := new(MockStoreClient)
	svc := NewBundleService(store, zerolog.Nop())

	store.On("ListObjects", mock.Anything, "docs", minio.ListObjectsOptions{Prefix: "deep/nested/photos/", Recursive: true}).
		Return([]minio.ObjectInfo{
			{Key: "deep/nested/photos/", Size: 0},
			{Key: "deep/nested/photos/cat.jpg", Size: 3},
			{Key: "deep/nested/photos/2024/dog.jpg", Size: 3},
		}, nil)
	store.On("GetObject", mock.Anything, "docs", "notes/readme.txt", mock.Anything).
		Return(objectBody("readme"), nil)
	store.On("GetObject", mock.Anything, "docs", "deep/nested/photos/cat.jpg", mock.Anything).
		Return(objectBody("cat"), nil)
	store.On("GetObject", mock.Anything, "docs", "deep/nested/photos/2024/dog.jpg", mock.Anything).
		Return(objectBody("dog"), nil)

	var buf bytes.Buffer
	err := svc.WriteArchive(context.Background(), "docs", []models.SelectionItem{
		{Kind: models.SelectionFile, DisplayName: "readme.txt", Key: "notes/readme.txt"},
		{Kind: models.SelectionFolder, DisplayName: "photos", Key: "deep/nested/photos/"},
	}, &buf)
	require.NoError(t, err)

	// Folder contents are re-rooted under the display name, not the
	// storage prefix.
	contents := readZip(t, &buf)
	assert.Equal(t, map[string]string{
		"readme.txt":          "readme",
		"photos/cat.jpg":      "cat",
		"photos/2024/dog.jpg": "dog",
	}, contents)
}

func TestWriteArchive_SkipsFailedFetches(t *testing.T) {
	store := new(MockStoreClient)
	svc := NewBundleService(store, zerolog.Nop())

	store.On("GetObject", mock.Anything, "docs", "gone.txt", mock.Anything).
		Return(nil, errors.New("no such key"))
	store.On("GetObject", mock.Anything, "docs", "ok.txt", mock.Anything).
		Return(objectBody("ok"), nil)

	var buf bytes.Buffer
	err := svc.WriteArchive(context.Background(), "docs", []models.SelectionItem{
		{Kind: models.SelectionFile, DisplayName: "gone.txt", Key: "gone.txt"},
		{Kind: models.SelectionFile, DisplayName: "ok.txt", Key: "ok.txt"},
	}, &buf)
	require.NoError(t, err)

	contents := readZip(t, &buf)
	assert.Equal(t, map[string]string{"ok.txt": "ok"}, contents)
}

func TestWriteArchive_SkipsFailedFolderListing(t *testing.T) {
	store := new(MockStoreClient)
	svc := NewBundleService(store, zerolog.Nop())

	store.On("ListObjects", mock.Anything, "docs", minio.ListObjectsOptions{Prefix: "broken/", Recursive: true}).
		Return(nil, errors.New("listing failed"))
	store.On("GetObject", mock.Anything, "docs", "ok.txt", mock.Anything).
		Return(objectBody("ok"), nil)

	var buf bytes.Buffer
	err := svc.WriteArchive(context.Background(), "docs", []models.SelectionItem{
		{Kind: models.SelectionFolder, DisplayName: "broken", Key: "broken/"},
		{Kind: models.SelectionFile, DisplayName: "ok.txt", Key: "ok.txt"},
	}, &buf)
	require.NoError(t, err)

	contents := readZip(t, &buf)
	assert.Equal(t, map[string]string{"ok.txt": "ok"}, contents)
}

func TestWriteArchive_FileNameFallsBackToKeyBase(t *testing.T) {
	store := new(MockStoreClient)
	svc := NewBundleService(store, zerolog.Nop())

	store.On("GetObject", mock.Anything, "docs", "a/b/report.pdf", mock.Anything).
		Return(objectBody("pdf"), nil)

	var buf bytes.Buffer
	err := svc.WriteArchive(context.Background(), "docs", []models.SelectionItem{
		{Kind: models.SelectionFile, Key: "a/b/report.pdf"},
	}, &buf)
	require.NoError(t, err)

	contents := readZip(t, &buf)
	assert.Equal(t, map[string]string{"report.pdf": "pdf"}, contents)
}

func TestResolveSelection_RejectsUnknownKindBeforeFetching(t *testing.T) {
	store := new(MockStoreClient)
	svc := NewBundleService(store, zerolog.Nop())

	_, err := svc.ResolveSelection(context.Background(), "docs", []models.SelectionItem{
		{Kind: models.SelectionFile, DisplayName: "ok.txt", Key: "ok.txt"},
		{Kind: "weird", Key: "x"},
	})
	assert.True(t, errs.IsInvalidInput(err))
	store.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWriteArchive_Validation(t *testing.T) {
	svc := NewBundleService(new(MockStoreClient), zerolog.Nop())

	var buf bytes.Buffer
	err := svc.WriteArchive(context.Background(), "", []models.SelectionItem{{Kind: models.SelectionFile, Key: "a"}}, &buf)
	assert.True(t, errs.IsInvalidInput(err))

	err = svc.WriteArchive(context.Background(), "docs", nil, &buf)
	assert.True(t, errs.IsInvalidInput(err))

	err = svc.WriteArchive(context.Background(), "docs", []models.SelectionItem{{Kind: "weird", Key: "a"}}, &buf)
	assert.True(t, errs.IsInvalidInput(err))
}
