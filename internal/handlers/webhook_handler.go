package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/services"
)

// WebhookHandler receives bucket event notifications from the object store
// and feeds object-created events into the indexing pipeline.
type WebhookHandler struct {
	indexer *services.Indexer
	log     zerolog.Logger
}

func NewWebhookHandler(indexer *services.Indexer, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{indexer: indexer, log: log}
}

// bucketEvent covers both notification shapes MinIO sends: the flat
// {EventName, Key} webhook form and the S3-style {Records: [...]} form.
type bucketEvent struct {
	EventName string `json:"EventName"`
	Key       string `json:"Key"`
	Records   []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// Notify ingests one notification. The response is always 200 so the store
// never retries or disables the webhook target; bad payloads are logged and
// dropped.
func (h *WebhookHandler) Notify(c echo.Context) error {
	var event bucketEvent
	if err := c.Bind(&event); err != nil {
		h.log.Warn().Err(err).Msg("webhook: undecodable payload")
		return c.NoContent(http.StatusOK)
	}

	for _, target := range h.extractTargets(event) {
		h.indexer.Enqueue(target.bucket, target.key)
	}
	return c.NoContent(http.StatusOK)
}

type indexTarget struct {
	bucket string
	key    string
}

func (h *WebhookHandler) extractTargets(event bucketEvent) []indexTarget {
	var targets []indexTarget

	if event.EventName != "" && event.Key != "" {
		if isObjectCreated(event.EventName) {
			if target, ok := h.splitFlatKey(event.Key); ok {
				targets = append(targets, target)
			}
		}
		return targets
	}

	for _, record := range event.Records {
		if !isObjectCreated(record.EventName) {
			continue
		}
		bucket := record.S3.Bucket.Name
		key, ok := decodeEventKey(record.S3.Object.Key)
		if !ok || bucket == "" || key == "" {
			h.log.Warn().Str("bucket", bucket).Str("rawKey", record.S3.Object.Key).Msg("webhook: record dropped")
			continue
		}
		targets = append(targets, indexTarget{bucket: bucket, key: key})
	}
	return targets
}

// splitFlatKey parses the webhook form's combined "bucket/object/key" field.
func (h *WebhookHandler) splitFlatKey(combined string) (indexTarget, bool) {
	decoded, ok := decodeEventKey(combined)
	if !ok {
		h.log.Warn().Str("rawKey", combined).Msg("webhook: undecodable key")
		return indexTarget{}, false
	}
	idx := strings.Index(decoded, "/")
	if idx <= 0 || idx == len(decoded)-1 {
		h.log.Warn().Str("key", decoded).Msg("webhook: key missing bucket segment")
		return indexTarget{}, false
	}
	return indexTarget{bucket: decoded[:idx], key: decoded[idx+1:]}, true
}

// decodeEventKey reverses the S3 event encoding, where spaces arrive as "+"
// and the rest is percent-encoded.
func decodeEventKey(raw string) (string, bool) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", false
	}
	return decoded, true
}

func isObjectCreated(eventName string) bool {
	return strings.HasPrefix(eventName, "s3:ObjectCreated:")
}
