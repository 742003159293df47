// Package apitest runs the blog API against a real store for integration tests.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/config"
	"github.com/solorad/blog-api/pkg/fixtures"
	"github.com/solorad/blog-api/pkg/models"
	"github.com/solorad/blog-api/pkg/server"
	"github.com/solorad/blog-api/pkg/storage"
)

// OpenStore returns the store the integration tests run against. With a test
// database url configured (TEST_DATABASE_URL or database.test_url) that is a
// MongoDB database distinct from the production one, otherwise a Bolt file under dir.
func OpenStore(ctx context.Context, dir string) (pkg.PostStore, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	if cfg.Database.TestURL == "" {
		return storage.NewBoltStore(filepath.Join(dir, "blog-test.db"))
	}
	db, err := cfg.Database.TestDatabase()
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, db)
}

// Harness owns a running API server bound to an injected store
type Harness struct {
	Store  pkg.PostStore
	Client *http.Client

	server *server.Server
	http   *httptest.Server
	gen    *fixtures.Generator
}

// New returns a harness around store. Call Start before issuing requests.
func New(store pkg.PostStore) *Harness {
	return &Harness{
		Store:  store,
		Client: &http.Client{Timeout: 10 * time.Second},
		gen:    fixtures.NewGenerator(0),
	}
}

// Start builds the service and serves it on a local httptest server
func (h *Harness) Start(ctx context.Context) error {
	h.server = server.New(h.Store)
	if err := h.server.Ready(ctx); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	h.http = httptest.NewServer(h.server.Handler())
	return nil
}

// Stop shuts the server down and releases the store
func (h *Harness) Stop(ctx context.Context) error {
	if h.http != nil {
		h.http.Close()
	}
	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return h.Store.Close(ctx)
}

// Reset drops the test database so each case starts empty
func (h *Harness) Reset(ctx context.Context) error {
	return h.Store.DropDatabase(ctx)
}

// Seed inserts n fake posts
func (h *Harness) Seed(ctx context.Context, n int) ([]*models.BlogPost, error) {
	return h.gen.Seed(ctx, h.Store, n)
}

// Fixtures exposes the fake data generator
func (h *Harness) Fixtures() *fixtures.Generator {
	return h.gen
}

// URL resolves path against the running server
func (h *Harness) URL(path string) string {
	return h.http.URL + path
}

// Do sends a request with body encoded as JSON. A []byte or string body is sent as is.
func (h *Harness) Do(method, path string, body interface{}) (*http.Response, error) {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.URL(path), r)
	if err != nil {
		return nil, err
	}
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.Client.Do(req)
}

// DecodeJSON reads and closes resp.Body into v
func DecodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// ReadBody reads and closes resp.Body
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
