package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vytor/bunpo/internal/logger"
)

// HTTPStore is a Store client for a document server speaking the protocol
// served by NewHandler.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewHTTPStore creates a client for the server at baseURL.
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Default().WithPrefix("remote-http"),
	}
}

func (c *HTTPStore) docURL(collection, id string) string {
	u := c.baseURL + "/collections/" + url.PathEscape(collection)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

// do sends the request and decodes a JSON response into out when non-nil.
// Transport failures and 5xx answers are reported as ErrUnavailable.
func (c *HTTPStore) do(ctx context.Context, method, target string, body any, out any) error {
	log := logger.FromContext(ctx).WithPrefix("remote-http").WithFields(map[string]any{"method": method, "url": target})

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		log.Error("failed to create request: %v", err)
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("request failed: %v", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	log.Debug("response received in %v, status=%d", time.Since(start), resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Warn("server error: status=%d, body=%s", resp.StatusCode, string(msg))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("request rejected: status=%d, body=%s", resp.StatusCode, string(msg))
		return fmt.Errorf("remote status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Error("failed to decode response: %v", err)
		return err
	}
	return nil
}

func (c *HTTPStore) List(ctx context.Context, collection string) ([]Doc, error) {
	var docs []Doc
	if err := c.do(ctx, http.MethodGet, c.docURL(collection, ""), nil, &docs); err != nil {
		return nil, err
	}
	SortDocs(docs)
	return docs, nil
}

func (c *HTTPStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var data json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.docURL(collection, id), nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *HTTPStore) Set(ctx context.Context, collection, id string, data json.RawMessage, merge bool) error {
	target := c.docURL(collection, id)
	if merge {
		target += "?merge=true"
	}
	return c.do(ctx, http.MethodPut, target, data, nil)
}

func (c *HTTPStore) Delete(ctx context.Context, collection, id string) error {
	err := c.do(ctx, http.MethodDelete, c.docURL(collection, id), nil, nil)
	if err == ErrNotFound {
		return nil
	}
	return err
}

func (c *HTTPStore) Commit(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/batch", ops, nil)
}

func (c *HTTPStore) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/ping", nil, nil)
}
