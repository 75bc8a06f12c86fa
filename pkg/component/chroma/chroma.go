// Package chroma provides a minimal HTTP client for the Chroma vector
// database REST API (v1).
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	chromaopts "github.com/itissonu/genaiquery/pkg/options/chroma"
)

// Client wraps the Chroma REST API.
type Client struct {
	opts       *chromaopts.Options
	httpClient *http.Client
}

// New creates a new Chroma client and verifies connectivity via heartbeat.
func New(ctx context.Context, opts *chromaopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("chroma options cannot be nil")
	}

	c := &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}

	if err := c.Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("chroma heartbeat failed: %w", err)
	}

	return c, nil
}

// Heartbeat checks if the Chroma server is reachable.
func (c *Client) Heartbeat(ctx context.Context) error {
	var resp map[string]any
	return c.do(ctx, http.MethodGet, "/api/v1/heartbeat", nil, &resp)
}

// Collection represents a Chroma collection handle.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetOrCreateCollection returns the named collection, creating it if absent.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (*Collection, error) {
	body := map[string]any{
		"name":          name,
		"get_or_create": true,
	}

	var coll Collection
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections", body, &coll); err != nil {
		return nil, fmt.Errorf("failed to get or create collection %q: %w", name, err)
	}
	return &coll, nil
}

// AddRequest carries the documents to add to a collection.
// All slices are parallel: entry i describes one document.
type AddRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float64      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

// Add inserts documents with precomputed embeddings into the collection.
func (c *Client) Add(ctx context.Context, collectionID string, req *AddRequest) error {
	var resp json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+collectionID+"/add", req, &resp); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// QueryRequest carries a nearest-neighbor query.
type QueryRequest struct {
	QueryEmbeddings [][]float64    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
}

// QueryResponse is the Chroma query result. The outer slice has one entry
// per query embedding; inner slices are ranked nearest-first.
type QueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// Query performs a nearest-neighbor search against the collection.
func (c *Client) Query(ctx context.Context, collectionID string, req *QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+collectionID+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	return &resp, nil
}

// GetRequest fetches documents by filter without a vector query.
type GetRequest struct {
	Where   map[string]any `json:"where,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Include []string       `json:"include,omitempty"`
}

// GetResponse is the result of a Get call. Slices are parallel.
type GetResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// Get fetches documents matching the filter.
func (c *Client) Get(ctx context.Context, collectionID string, req *GetRequest) (*GetResponse, error) {
	var resp GetResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+collectionID+"/get", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	return &resp, nil
}

// Delete removes documents matching the where filter.
func (c *Client) Delete(ctx context.Context, collectionID string, where map[string]any) error {
	body := map[string]any{}
	if len(where) > 0 {
		body["where"] = where
	}

	var resp json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+collectionID+"/delete", body, &resp); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (c *Client) Count(ctx context.Context, collectionID string) (int, error) {
	var count int
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections/"+collectionID+"/count", nil, &count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// do sends a JSON request and decodes a JSON response.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.URL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
