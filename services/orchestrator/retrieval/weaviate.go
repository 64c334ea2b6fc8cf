// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/observability"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("varsity.orchestrator.retrieval")

// Retry configuration constants.
const (
	// maxSearchRetries is the maximum number of retry attempts for
	// search operations. Retries use exponential backoff.
	maxSearchRetries = 3

	// initialRetryDelay is the delay before the first retry attempt.
	// Subsequent retries double this delay (1s, 2s, 4s).
	initialRetryDelay = 1 * time.Second
)

// Compile-time interface implementation check.
var _ Searcher = (*WeaviateSearcher)(nil)

// WeaviateSearcher searches the Document class with BM25 keyword ranking.
//
// The knowledge base is ingested without vectors (Vectorizer "none"), so
// keyword search is the ranking that works out of the box.
type WeaviateSearcher struct {
	client *weaviate.Client
}

// NewWeaviateSearcher creates a searcher over the given client.
func NewWeaviateSearcher(client *weaviate.Client) *WeaviateSearcher {
	return &WeaviateSearcher{client: client}
}

// Search implements the Searcher interface.
//
// Transient backend failures (502, 503, 504, connection errors) are
// retried up to three times with exponential backoff. Context
// cancellation aborts the retry loop immediately.
func (s *WeaviateSearcher) Search(ctx context.Context, query string, metaFilters map[string]string, limit int) ([]datatypes.Passage, error) {
	ctx, span := tracer.Start(ctx, "WeaviateSearcher.Search")
	defer span.End()

	if limit <= 0 {
		limit = DefaultMaxPassages
	}
	span.SetAttributes(
		attribute.String("retrieval.query", query),
		attribute.Int("retrieval.limit", limit),
		attribute.Int("retrieval.filters", len(metaFilters)),
	)

	var lastErr error
	retryDelay := initialRetryDelay

	for attempt := 0; attempt <= maxSearchRetries; attempt++ {
		if attempt > 0 {
			span.AddEvent("retry_attempt", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("delay", retryDelay.String()),
			))
			slog.Info("Retrying knowledge base search",
				"attempt", attempt,
				"delay", retryDelay,
				"lastError", lastErr,
			)
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.RecordRetrievalRetry()
			}

			select {
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, "context canceled during retry")
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		passages, err := s.searchOnce(ctx, query, metaFilters, limit)
		if err == nil {
			span.SetAttributes(
				attribute.Int("retrieval.passages", len(passages)),
				attribute.Int("retrieval.attempts", attempt+1),
			)
			return passages, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "non-retryable error")
			return nil, err
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all retries exhausted")
	return nil, &RetrievalError{
		StatusCode: statusCodeOf(lastErr),
		Message:    lastErr.Error(),
		Retryable:  true,
	}
}

// searchOnce performs a single BM25 query against the Document class.
func (s *WeaviateSearcher) searchOnce(ctx context.Context, query string, metaFilters map[string]string, limit int) ([]datatypes.Passage, error) {
	bm25 := (&graphql.BM25ArgumentBuilder{}).
		WithQuery(query).
		WithProperties("content", "parent_source")

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "parent_source"},
		{Name: "category"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	builder := s.client.GraphQL().Get().
		WithClassName("Document").
		WithBM25(bm25).
		WithLimit(limit).
		WithFields(fields...)
	if where := buildWhereFilter(metaFilters); where != nil {
		builder = builder.WithWhere(where)
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, classifyClientError(err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.DocumentQueryResponse](resp)
	if err != nil {
		return nil, &RetrievalError{Message: err.Error(), Retryable: false}
	}

	passages := make([]datatypes.Passage, 0, len(parsed.Get.Document))
	for _, doc := range parsed.Get.Document {
		score := 0.0
		if doc.Additional.Score != nil {
			if parsedScore, perr := strconv.ParseFloat(*doc.Additional.Score, 64); perr == nil {
				score = parsedScore
			}
		}
		passages = append(passages, datatypes.Passage{
			Content:  doc.Content,
			SourceID: doc.Source,
			Score:    score,
		})
	}
	return passages, nil
}

// buildWhereFilter translates metadata filters into a Weaviate where
// clause. Keys are sorted so the generated query is deterministic.
func buildWhereFilter(metaFilters map[string]string) *filters.WhereBuilder {
	if len(metaFilters) == 0 {
		return nil
	}

	keys := make([]string, 0, len(metaFilters))
	for k := range metaFilters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	operands := make([]*filters.WhereBuilder, 0, len(keys))
	for _, k := range keys {
		operands = append(operands, filters.Where().
			WithPath([]string{k}).
			WithOperator(filters.Equal).
			WithValueText(metaFilters[k]))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

// classifyClientError converts a Weaviate client error into a
// RetrievalError with retryability derived from the status code.
func classifyClientError(err error) error {
	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) {
		return &RetrievalError{
			StatusCode: clientErr.StatusCode,
			Message:    clientErr.Msg,
			Retryable:  isRetryableStatusCode(clientErr.StatusCode),
		}
	}
	// Connection-level failures carry no status code and may be transient.
	return &RetrievalError{Message: err.Error(), Retryable: true}
}

func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusBadGateway, // 502
		http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout:     // 504
		return true
	default:
		return false
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(*RetrievalError); ok {
		return re.Retryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func statusCodeOf(err error) int {
	if re, ok := err.(*RetrievalError); ok {
		return re.StatusCode
	}
	return 0
}
