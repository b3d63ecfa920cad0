// Package models contains data structures shared across handlers and services.
package models

import (
	"context"
	"io"
	"time"
)

// ObjectEntry is one stored object as shown in a folder listing.
type ObjectEntry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// FolderInfo is a virtual folder derived from key prefixes. Folders are
// never stored; they exist only as a grouping over a listing.
type FolderInfo struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// Breadcrumb for navigation within a prefix.
type Breadcrumb struct {
	Label  string `json:"label"`
	Prefix string `json:"prefix"`
}

// FolderView is one level of the virtual hierarchy under a prefix.
type FolderView struct {
	Bucket      string        `json:"bucket"`
	Prefix      string        `json:"prefix"`
	Folders     []FolderInfo  `json:"folders"`
	Objects     []ObjectEntry `json:"objects"`
	Breadcrumbs []Breadcrumb  `json:"breadcrumbs"`
}

// UploadUnit is one file queued for upload together with the path it must
// occupy relative to the destination prefix. Source is opened exactly once
// when the unit is written to the store.
type UploadUnit struct {
	Source       func(ctx context.Context) (io.ReadCloser, error)
	RelativePath string
	Size         int64
	ContentType  string
}

// SelectionKind distinguishes files from folders in a download selection.
type SelectionKind string

const (
	SelectionFile   SelectionKind = "file"
	SelectionFolder SelectionKind = "folder"
)

// SelectionItem is one element of a download selection. Key holds the exact
// object key for files and the key prefix for folders. DisplayName controls
// where the item is rooted inside the archive, independent of its key.
type SelectionItem struct {
	Kind        SelectionKind `json:"kind"`
	DisplayName string        `json:"displayName"`
	Key         string        `json:"key"`
}
