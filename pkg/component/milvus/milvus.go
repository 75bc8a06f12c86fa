// Package milvus wraps the Milvus SDK client for vector collections that
// carry per-project document chunks.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/itissonu/genaiquery/pkg/options/milvus"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// EnsureCollection creates the chunk collection if it does not exist yet.
//
// The schema carries a client-supplied string primary key so that chunk IDs
// stay stable across reingestion, plus the metadata fields needed for
// project-scoped filtering. The vector index uses the COSINE metric, so
// search scores are similarities directly.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(name).
		WithDescription("project document chunks").
		WithField(
			entity.NewField().
				WithName("id").
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(128).
				WithIsPrimaryKey(true),
		).
		WithField(
			entity.NewField().
				WithName("embedding").
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dimension)),
		).
		WithField(
			entity.NewField().
				WithName("project_id").
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(256),
		).
		WithField(
			entity.NewField().
				WithName("content").
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(65535),
		).
		WithField(
			entity.NewField().
				WithName("chunk_index").
				WithDataType(entity.FieldTypeInt64),
		).
		WithField(
			entity.NewField().
				WithName("created_at").
				WithDataType(entity.FieldTypeInt64),
		)

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

// ChunkRow is one document chunk to insert.
type ChunkRow struct {
	ID         string
	Embedding  []float32
	ProjectID  string
	Content    string
	ChunkIndex int64
	CreatedAt  int64
}

// Insert inserts chunk rows and flushes so they are visible immediately.
func (c *Client) Insert(ctx context.Context, collectionName string, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, len(rows))
	embeddings := make([][]float32, len(rows))
	projectIDs := make([]string, len(rows))
	contents := make([]string, len(rows))
	chunkIndexes := make([]int64, len(rows))
	createdAts := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		embeddings[i] = row.Embedding
		projectIDs[i] = row.ProjectID
		contents[i] = row.Content
		chunkIndexes[i] = row.ChunkIndex
		createdAts[i] = row.CreatedAt
	}

	columns := []column.Column{
		column.NewColumnVarChar("id", ids),
		column.NewColumnFloatVector("embedding", len(embeddings[0]), embeddings),
		column.NewColumnVarChar("project_id", projectIDs),
		column.NewColumnVarChar("content", contents),
		column.NewColumnInt64("chunk_index", chunkIndexes),
		column.NewColumnInt64("created_at", createdAts),
	}

	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	// Flush so ingested chunks are searchable right away. Frequent flushes
	// cost write throughput, which is acceptable for ingestion workloads.
	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search performs a vector similarity search, optionally restricted by a
// boolean filter expression such as `project_id == "p1"`.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, filter string, outputFields []string) ([]SearchResult, error) {
	searchOpt := milvusclient.NewSearchOption(
		collectionName,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...)
	if filter != "" {
		searchOpt = searchOpt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	searchResults := make([]SearchResult, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		result := SearchResult{
			Score:    results[0].Scores[i],
			Metadata: make(map[string]any),
		}

		if idCol, ok := results[0].IDs.(*column.ColumnVarChar); ok {
			result.ID = idCol.Data()[i]
		}

		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				result.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				result.Metadata[col.Name()] = col.Data()[i]
			}
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// DeleteByFilter deletes all rows matching the filter expression.
func (c *Client) DeleteByFilter(ctx context.Context, collectionName, filter string) error {
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collectionName).WithExpr(filter)); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// QueryStrings returns the values of a VARCHAR field for rows matching the
// filter expression. An empty filter scans the whole collection.
func (c *Client) QueryStrings(ctx context.Context, collectionName, filter, field string, limit int) ([]string, error) {
	queryOpt := milvusclient.NewQueryOption(collectionName).
		WithOutputFields(field).
		WithLimit(limit)
	if filter != "" {
		queryOpt = queryOpt.WithFilter(filter)
	}

	resultSet, err := c.client.Query(ctx, queryOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to query field %s: %w", field, err)
	}

	col := resultSet.GetColumn(field)
	if col == nil {
		return nil, nil
	}
	strCol, ok := col.(*column.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("field %s is not a varchar column", field)
	}
	return strCol.Data(), nil
}

// QueryInt64s returns the values of an Int64 field for rows matching the
// filter expression. An empty filter scans the whole collection.
func (c *Client) QueryInt64s(ctx context.Context, collectionName, filter, field string, limit int) ([]int64, error) {
	queryOpt := milvusclient.NewQueryOption(collectionName).
		WithOutputFields(field).
		WithLimit(limit)
	if filter != "" {
		queryOpt = queryOpt.WithFilter(filter)
	}

	resultSet, err := c.client.Query(ctx, queryOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to query field %s: %w", field, err)
	}

	col := resultSet.GetColumn(field)
	if col == nil {
		return nil, nil
	}
	intCol, ok := col.(*column.ColumnInt64)
	if !ok {
		return nil, fmt.Errorf("field %s is not an int64 column", field)
	}
	return intCol.Data(), nil
}

// CountByFilter returns the number of rows matching the filter expression.
// An empty filter counts the whole collection.
func (c *Client) CountByFilter(ctx context.Context, collectionName, filter string) (int64, error) {
	queryOpt := milvusclient.NewQueryOption(collectionName).
		WithOutputFields("count(*)")
	if filter != "" {
		queryOpt = queryOpt.WithFilter(filter)
	}

	resultSet, err := c.client.Query(ctx, queryOpt)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}

	col := resultSet.GetColumn("count(*)")
	if col == nil {
		return 0, nil
	}
	countCol, ok := col.(*column.ColumnInt64)
	if !ok || countCol.Len() == 0 {
		return 0, nil
	}
	return countCol.Data()[0], nil
}
