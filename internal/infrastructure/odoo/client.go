// Package odoo implements directory.Service over the JSON-RPC endpoint of an
// Odoo server: common.login once, then object.execute_kw per call.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
	"erpsync/pkg/logger"
)

var tracer = otel.Tracer("erpsync/odoo")

// Config holds connection settings.
type Config struct {
	URL      string
	DB       string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a directory.Service backed by Odoo.
type Client struct {
	cfg  Config
	http *resty.Client
	seq  atomic.Int64

	mu  sync.Mutex
	uid int64
}

var _ directory.Service = (*Client)(nil)

// New creates a client. No request is made until the first call.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{cfg: cfg, http: httpClient}
}

// Login authenticates and caches the user id. It is called lazily by every
// other method; calling it up front turns bad credentials into a startup error.
func (c *Client) Login(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}

	raw, err := c.call(ctx, "common", "login", c.cfg.DB, c.cfg.Username, c.cfg.Password)
	if err != nil {
		if rpcErr, ok := err.(*rpcError); ok {
			return 0, apperror.NewConnectivity("directory", rpcErr)
		}
		return 0, err
	}
	var uid any
	if err := json.Unmarshal(raw, &uid); err != nil {
		return 0, apperror.NewConnectivity("directory", fmt.Errorf("decode login result: %w", err))
	}
	id, ok := directory.RefID(uid)
	if !ok {
		return 0, apperror.NewConnectivity("directory", fmt.Errorf("authentication failed for %s@%s", c.cfg.Username, c.cfg.DB))
	}
	c.uid = id
	logger.Info(ctx, "directory login", "db", c.cfg.DB, "uid", id)
	return id, nil
}

// Search implements directory.Service.
func (c *Client) Search(ctx context.Context, kind directory.Kind, domain filter.Domain, opts ...directory.SearchOption) ([]int64, error) {
	o := directory.ApplySearchOptions(opts...)
	encoded, err := encodeDomain(domain)
	if err != nil {
		return nil, err
	}
	kwargs := map[string]any{}
	if o.Limit > 0 {
		kwargs["limit"] = o.Limit
	}
	if o.Order != "" {
		kwargs["order"] = o.Order
	}
	if o.IncludeArchived {
		kwargs["context"] = map[string]any{"active_test": false}
	}

	var ids []int64
	if err := c.execute(ctx, kind, "search", []any{encoded}, kwargs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Read implements directory.Service.
func (c *Client) Read(ctx context.Context, kind directory.Kind, ids []int64, fields []string) ([]directory.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}

	var rows []map[string]any
	if err := c.execute(ctx, kind, "read", []any{ids}, kwargs, &rows); err != nil {
		return nil, err
	}

	out := make([]directory.Record, 0, len(rows))
	for _, row := range rows {
		id, _ := directory.RefID(row["id"])
		delete(row, "id")
		out = append(out, directory.Record{ID: id, Fields: directory.FieldMap(row)})
	}
	return out, nil
}

// Create implements directory.Service.
func (c *Client) Create(ctx context.Context, kind directory.Kind, fields directory.FieldMap) (int64, error) {
	var id int64
	if err := c.execute(ctx, kind, "create", []any{fields}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write implements directory.Service.
func (c *Client) Write(ctx context.Context, kind directory.Kind, ids []int64, fields directory.FieldMap) (bool, error) {
	var ok bool
	if err := c.execute(ctx, kind, "write", []any{ids, fields}, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Unlink implements directory.Service.
func (c *Client) Unlink(ctx context.Context, kind directory.Kind, ids []int64) (bool, error) {
	var ok bool
	if err := c.execute(ctx, kind, "unlink", []any{ids}, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// execute runs object.execute_kw and decodes the result into out.
func (c *Client) execute(ctx context.Context, kind directory.Kind, method string, args []any, kwargs map[string]any, out any) error {
	ctx, span := tracer.Start(ctx, "odoo."+method,
		trace.WithAttributes(
			attribute.String("odoo.model", string(kind)),
			attribute.String("odoo.method", method),
		))
	defer span.End()

	uid, err := c.Login(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	raw, err := c.call(ctx, "object", "execute_kw",
		c.cfg.DB, uid, c.cfg.Password, string(kind), method, args, kwargs)
	if err != nil {
		if rpcErr, ok := err.(*rpcError); ok {
			err = rpcErr.toAppError(kind, method)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, method+" failed")
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.NewInternal(fmt.Errorf("decode %s.%s result: %w", kind, method, err))
	}
	return nil
}

// call posts one JSON-RPC request. Transport failures are connectivity errors;
// server faults come back as *rpcError.
func (c *Client) call(ctx context.Context, service, method string, args ...any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.seq.Add(1),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/jsonrpc")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperror.NewConnectivity("directory", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperror.NewConnectivity("directory",
			fmt.Errorf("%s.%s: unexpected status %s", service, method, resp.Status()))
	}

	var body rpcResponse
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	if err := dec.Decode(&body); err != nil {
		return nil, apperror.NewConnectivity("directory", fmt.Errorf("decode response: %w", err))
	}
	if body.Error != nil {
		return nil, body.Error
	}
	return body.Result, nil
}
