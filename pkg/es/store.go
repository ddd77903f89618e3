// Package es wraps the Elasticsearch client behind the capability surface the
// retrieval pipeline needs: liveness, index lifecycle, bulk loading, and the
// fused vector+keyword query.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"

	"miba-assist-go/internal/config"
	"miba-assist-go/internal/model"
	"miba-assist-go/pkg/log"
)

// rankConstant is the RRF smoothing constant sent with every fused query.
const rankConstant = 60

// SearchStore is the contract over the hybrid index. It exists so the
// retriever and index builder can be exercised against fakes in tests.
type SearchStore interface {
	Ping(ctx context.Context) error
	IndexExists(ctx context.Context) (bool, error)
	CreateIndex(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
	BulkIndex(ctx context.Context, docs []model.ChunkDocument) error
	// HybridQuery issues one fused RRF query and returns ranked chunks with
	// their relevance scores.
	HybridQuery(ctx context.Context, query string, vector []float32, k int) ([]model.ChunkDocument, []float64, error)
	HybridEnabled() bool
	EnableHybrid()
}

// Store is the Elasticsearch-backed SearchStore. Hybrid mode is an explicit
// construction-time property, not a flag retrofitted onto a client object.
type Store struct {
	client        *elasticsearch.Client
	cfg           config.ElasticsearchConfig
	dims          int
	hybridEnabled atomic.Bool
}

// NewStore connects to Elasticsearch and verifies liveness. A failed ping is
// fatal to store initialization: no handle is returned.
func NewStore(cfg config.ElasticsearchConfig, dims int) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	s := &Store{client: client, cfg: cfg, dims: dims}
	if err := s.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("elasticsearch liveness check failed: %w", err)
	}
	s.hybridEnabled.Store(true)
	log.Infof("elasticsearch store ready, index '%s'", cfg.IndexName)
	return s, nil
}

// Ping checks that the cluster is reachable.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned status %d", res.StatusCode)
	}
	return nil
}

// HybridEnabled reports whether fused queries are enabled on this handle.
func (s *Store) HybridEnabled() bool {
	return s.hybridEnabled.Load()
}

// EnableHybrid turns fused query mode on.
func (s *Store) EnableHybrid() {
	s.hybridEnabled.Store(true)
}

// IndexExists reports whether the configured index exists.
func (s *Store) IndexExists(ctx context.Context) (bool, error) {
	res, err := s.client.Indices.Exists([]string{s.cfg.IndexName},
		s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return true, nil
	}
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("unexpected status checking index existence: %d", res.StatusCode)
}

// CreateIndex creates the hybrid index with a dense vector field and a
// BM25-analyzed text field.
func (s *Store) CreateIndex(ctx context.Context) error {
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_key":    { "type": "keyword" },
				"source_key":   { "type": "keyword" },
				"chunk_index":  { "type": "integer" },
				"title":        { "type": "text" },
				"topics":       { "type": "text" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, s.dims)

	res, err := s.client.Indices.Create(
		s.cfg.IndexName,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index '%s': %w", s.cfg.IndexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch returned error creating index '%s': %s", s.cfg.IndexName, res.String())
	}
	log.Infof("index '%s' created", s.cfg.IndexName)
	return nil
}

// DeleteIndex removes the configured index.
func (s *Store) DeleteIndex(ctx context.Context) error {
	res, err := s.client.Indices.Delete([]string{s.cfg.IndexName},
		s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete index '%s': %w", s.cfg.IndexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch returned error deleting index '%s': %s", s.cfg.IndexName, res.String())
	}
	log.Infof("index '%s' deleted", s.cfg.IndexName)
	return nil
}

// BulkIndex upserts chunk documents in one bulk request, keyed by chunk_key.
func (s *Store) BulkIndex(ctx context.Context, docs []model.ChunkDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": s.cfg.IndexName,
				"_id":    doc.ChunkKey,
			},
		}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk document: %w", err)
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk index request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch returned error on bulk index: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		return errors.New("bulk index reported item-level errors")
	}
	log.Infof("bulk indexed %d chunks into '%s'", len(docs), s.cfg.IndexName)
	return nil
}

// HybridQuery fuses a BM25 match and a kNN search with reciprocal-rank
// fusion. The fusion algorithm, per-modality weights, and result count all
// travel in the request body.
func (s *Store) HybridQuery(ctx context.Context, query string, vector []float32, k int) ([]model.ChunkDocument, []float64, error) {
	if !s.HybridEnabled() {
		return nil, nil, errors.New("hybrid search mode is disabled on this store handle")
	}

	keywordWeight := s.cfg.KeywordWeight
	vectorWeight := s.cfg.VectorWeight
	if keywordWeight == 0 && vectorWeight == 0 {
		keywordWeight, vectorWeight = 0.5, 0.5
	}
	windowSize := k * 20

	esQuery := map[string]interface{}{
		"retriever": map[string]interface{}{
			"rrf": map[string]interface{}{
				"retrievers": []map[string]interface{}{
					{
						"standard": map[string]interface{}{
							"query": map[string]interface{}{
								"match": map[string]interface{}{
									"text_content": map[string]interface{}{
										"query": query,
										"boost": keywordWeight,
									},
								},
							},
						},
					},
					{
						"knn": map[string]interface{}{
							"field":          "vector",
							"query_vector":   vector,
							"k":              windowSize,
							"num_candidates": windowSize,
							"boost":          vectorWeight,
						},
					},
				},
				"rank_window_size": windowSize,
				"rank_constant":    rankConstant,
			},
		},
		"size": k,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, nil, fmt.Errorf("failed to encode hybrid query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.cfg.IndexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("hybrid search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, nil, fmt.Errorf("elasticsearch returned error on hybrid search: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.ChunkDocument `json:"_source"`
				Score  float64             `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, nil, fmt.Errorf("failed to decode hybrid search response: %w", err)
	}

	docs := make([]model.ChunkDocument, 0, len(esResponse.Hits.Hits))
	scores := make([]float64, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		docs = append(docs, hit.Source)
		scores = append(scores, hit.Score)
	}
	return docs, scores, nil
}
