package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/errs"
)

// Store is the search-engine surface consumed by the indexer and the query
// handlers. *ElasticStore is the production implementation; tests provide
// mocks.
type Store interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, doc Document, withPipeline bool) error
	Delete(ctx context.Context, bucket, objectKey string) error
	Search(ctx context.Context, query string, page, size int) (*Result, error)
}

// ElasticStore implements Store on an Elasticsearch cluster.
type ElasticStore struct {
	es  *elasticsearch.Client
	log zerolog.Logger
}

// NewElasticStore connects to the cluster at url.
func NewElasticStore(url string, log zerolog.Logger) (*ElasticStore, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "create elasticsearch client", err)
	}
	return &ElasticStore{es: es, log: log}, nil
}

// EnsureIndex creates the attachment pipeline and the files index if they do
// not exist yet. Safe to call on every startup.
func (s *ElasticStore) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "elasticsearch unreachable", err)
	}
	closeBody(res.Body)
	if res.IsError() {
		return errs.New(errs.KindUnavailable, "elasticsearch ping failed: "+res.Status())
	}

	if err := s.ensurePipeline(ctx); err != nil {
		return err
	}
	return s.ensureFilesIndex(ctx)
}

func (s *ElasticStore) ensurePipeline(ctx context.Context) error {
	res, err := s.es.Ingest.GetPipeline(
		s.es.Ingest.GetPipeline.WithPipelineID(PipelineName),
		s.es.Ingest.GetPipeline.WithContext(ctx),
	)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "get ingest pipeline", err)
	}
	closeBody(res.Body)
	if !res.IsError() {
		return nil
	}

	pipeline := map[string]interface{}{
		"description": "Extract attachment information",
		"processors": []interface{}{
			map[string]interface{}{
				"attachment": map[string]interface{}{
					"field":          "data",
					"target_field":   "attachment",
					"indexed_chars":  -1,
					"ignore_missing": true,
				},
			},
			map[string]interface{}{
				"remove": map[string]interface{}{
					"field":          "data",
					"ignore_missing": true,
				},
			},
		},
	}

	res, err = s.es.Ingest.PutPipeline(PipelineName, esutil.NewJSONReader(pipeline),
		s.es.Ingest.PutPipeline.WithContext(ctx))
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "create ingest pipeline", err)
	}
	closeBody(res.Body)
	if res.IsError() {
		return errs.New(errs.KindUnavailable, "create ingest pipeline: "+res.Status())
	}
	s.log.Info().Str("pipeline", PipelineName).Msg("attachment pipeline created")
	return nil
}

func (s *ElasticStore) ensureFilesIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{IndexName},
		s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "check index", err)
	}
	closeBody(res.Body)
	if !res.IsError() {
		return nil
	}

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"default_pipeline":   PipelineName,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"bucket":      map[string]string{"type": "keyword"},
				"objectKey":   map[string]string{"type": "keyword"},
				"fileName":    map[string]string{"type": "text"},
				"filePath":    map[string]string{"type": "text"},
				"size":        map[string]string{"type": "long"},
				"contentType": map[string]string{"type": "keyword"},
				"uploadedAt":  map[string]string{"type": "date"},
				"data":        map[string]interface{}{"type": "text", "index": false},
				"attachment": map[string]interface{}{
					"properties": map[string]interface{}{
						"content":        map[string]string{"type": "text"},
						"title":          map[string]string{"type": "text"},
						"author":         map[string]string{"type": "text"},
						"keywords":       map[string]string{"type": "text"},
						"date":           map[string]string{"type": "date"},
						"content_type":   map[string]string{"type": "text"},
						"content_length": map[string]string{"type": "long"},
						"language":       map[string]string{"type": "keyword"},
					},
				},
			},
		},
	}

	res, err = s.es.Indices.Create(IndexName,
		s.es.Indices.Create.WithBody(esutil.NewJSONReader(mapping)),
		s.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "create index", err)
	}
	closeBody(res.Body)
	if res.IsError() {
		return errs.New(errs.KindUnavailable, "create index: "+res.Status())
	}
	s.log.Info().Str("index", IndexName).Msg("files index created")
	return nil
}

// Upsert writes doc under its deterministic id, optionally through the
// attachment pipeline.
func (s *ElasticStore) Upsert(ctx context.Context, doc Document, withPipeline bool) error {
	opts := []func(*esapi.IndexRequest){
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(doc.ID()),
	}
	if withPipeline {
		opts = append(opts, s.es.Index.WithPipeline(PipelineName))
	}

	res, err := s.es.Index(IndexName, esutil.NewJSONReader(doc), opts...)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "index document", err)
	}
	closeBody(res.Body)
	if res.IsError() {
		return errs.New(errs.KindUnavailable, fmt.Sprintf("index document %s: %s", doc.ID(), res.Status()))
	}
	return nil
}

// Delete removes the documents matching (bucket, objectKey) exactly.
func (s *ElasticStore) Delete(ctx context.Context, bucket, objectKey string) error {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"term": map[string]string{"bucket": bucket}},
					map[string]interface{}{"term": map[string]string{"objectKey": objectKey}},
				},
			},
		},
	}

	res, err := s.es.DeleteByQuery([]string{IndexName}, esutil.NewJSONReader(body),
		s.es.DeleteByQuery.WithContext(ctx))
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "delete from index", err)
	}
	closeBody(res.Body)
	if res.IsError() {
		return errs.New(errs.KindUnavailable, "delete from index: "+res.Status())
	}
	return nil
}

// Search runs the ranked multi-field query. page is 1-based.
func (s *ElasticStore) Search(ctx context.Context, query string, page, size int) (*Result, error) {
	if page < 1 {
		page = 1
	}
	from := (page - 1) * size

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(IndexName),
		s.es.Search.WithBody(esutil.NewJSONReader(buildSearchBody(query))),
		s.es.Search.WithFrom(from),
		s.es.Search.WithSize(size),
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "search", err)
	}
	defer closeBody(res.Body)
	if res.IsError() {
		return nil, errs.New(errs.KindUnavailable, "search: "+res.Status())
	}

	return parseSearchResponse(res.Body)
}

// buildSearchBody weights file name above path and extracted title above
// body text, with fuzzy matching and recency as the score tiebreaker.
func buildSearchBody(query string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"fileName^3", "filePath^2", "attachment.content", "attachment.title^2"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"fileName": map[string]interface{}{},
				"attachment.content": map[string]interface{}{
					"fragment_size":       150,
					"number_of_fragments": 2,
				},
			},
		},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"uploadedAt": map[string]string{"order": "desc"}},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    Document            `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func parseSearchResponse(body io.Reader) (*Result, error) {
	var raw searchResponse
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "decode search response", err)
	}

	result := &Result{Total: raw.Hits.Total.Value, Hits: make([]Hit, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		result.Hits = append(result.Hits, Hit{
			ID:         h.ID,
			Score:      h.Score,
			Document:   h.Source,
			Highlights: h.Highlight,
		})
	}
	return result, nil
}

func closeBody(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, body)
		_ = body.Close()
	}
}
