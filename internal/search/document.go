// Package search wraps the Elasticsearch index that mirrors object-store
// contents. Documents are keyed "bucket:objectKey" so re-indexing a key is
// always an upsert.
package search

import "time"

// IndexName holds file documents.
const IndexName = "files"

// PipelineName is the ingest pipeline that extracts text from base64
// attachments and strips the raw payload before the document is stored.
const PipelineName = "attachment"

// Attachment carries the fields extracted by the ingest pipeline.
type Attachment struct {
	Content       string `json:"content,omitempty"`
	Title         string `json:"title,omitempty"`
	Author        string `json:"author,omitempty"`
	Keywords      string `json:"keywords,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	ContentLength int64  `json:"content_length,omitempty"`
	Language      string `json:"language,omitempty"`
}

// Document is one indexed object. Data holds the base64 payload handed to
// the ingest pipeline; the pipeline removes it, so it never persists in the
// index and is never present on documents read back.
type Document struct {
	Bucket      string      `json:"bucket"`
	ObjectKey   string      `json:"objectKey"`
	FileName    string      `json:"fileName"`
	FilePath    string      `json:"filePath"`
	Size        int64       `json:"size"`
	ContentType string      `json:"contentType"`
	UploadedAt  time.Time   `json:"uploadedAt"`
	Data        string      `json:"data,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
}

// ID is deterministic from (bucket, objectKey), making writes idempotent.
func (d Document) ID() string {
	return d.Bucket + ":" + d.ObjectKey
}

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Document
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// Result is one page of search results.
type Result struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}
