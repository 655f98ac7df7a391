package odoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
)

type fakeServer struct {
	mu    sync.Mutex
	calls []rpcParams
	reply func(p rpcParams) (any, *rpcError)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, req.Params)
	f.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if req.Params.Service == "common" {
		resp["result"] = 7
	} else {
		result, rpcErr := f.reply(req.Params)
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeServer) executeCalls() []rpcParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rpcParams
	for _, c := range f.calls {
		if c.Service == "object" {
			out = append(out, c)
		}
	}
	return out
}

func newTestClient(t *testing.T, reply func(p rpcParams) (any, *rpcError)) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{reply: reply}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, DB: "prod", Username: "sync", Password: "secret", Timeout: 5 * time.Second}), fake
}

func TestClient_SearchSendsDomainAndOptions(t *testing.T) {
	c, fake := newTestClient(t, func(p rpcParams) (any, *rpcError) {
		return []int64{4, 9}, nil
	})

	ids, err := c.Search(context.Background(), directory.ProductTemplate,
		filter.NewDomain(filter.Eq("default_code", "A1")),
		directory.IncludeArchived(), directory.Limit(2), directory.Order("id"))
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, ids)

	calls := fake.executeCalls()
	require.Len(t, calls, 1)
	args := calls[0].Args
	require.Len(t, args, 7)
	assert.Equal(t, "prod", args[0])
	assert.Equal(t, float64(7), args[1])
	assert.Equal(t, "product.template", args[3])
	assert.Equal(t, "search", args[4])
	assert.Equal(t, []any{[]any{[]any{"default_code", "=", "A1"}}}, args[5])

	kwargs := args[6].(map[string]any)
	assert.Equal(t, float64(2), kwargs["limit"])
	assert.Equal(t, "id", kwargs["order"])
	assert.Equal(t, map[string]any{"active_test": false}, kwargs["context"])
}

func TestClient_LogsInOnce(t *testing.T) {
	c, fake := newTestClient(t, func(p rpcParams) (any, *rpcError) {
		return true, nil
	})
	ctx := context.Background()

	_, err := c.Write(ctx, directory.Partner, []int64{1}, directory.FieldMap{"name": "ACME"})
	require.NoError(t, err)
	_, err = c.Unlink(ctx, directory.Partner, []int64{1})
	require.NoError(t, err)

	logins := 0
	for _, call := range fake.calls {
		if call.Service == "common" {
			logins++
		}
	}
	assert.Equal(t, 1, logins)
}

func TestClient_ReadExtractsID(t *testing.T) {
	c, _ := newTestClient(t, func(p rpcParams) (any, *rpcError) {
		return []map[string]any{
			{"id": 5, "name": "Drill", "uom_id": []any{1, "Units"}},
		}, nil
	})

	recs, err := c.Read(context.Background(), directory.ProductTemplate, []int64{5}, []string{"name", "uom_id"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(5), recs[0].ID)
	assert.Equal(t, "Drill", recs[0].Fields["name"])
	_, hasID := recs[0].Fields["id"]
	assert.False(t, hasID)

	ref, ok := directory.RefID(recs[0].Fields["uom_id"])
	assert.True(t, ok)
	assert.Equal(t, int64(1), ref)
}

func TestClient_ServerFaultsAreClassified(t *testing.T) {
	tests := []struct {
		name      string
		exception string
		code      string
	}{
		{"validation", "odoo.exceptions.ValidationError", apperror.CodeWriteRejected},
		{"missing", "odoo.exceptions.MissingError", apperror.CodeNotFound},
		{"access denied", "odoo.exceptions.AccessDenied", apperror.CodeConnectivity},
		{"unknown", "builtins.KeyError", apperror.CodeWriteRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(p rpcParams) (any, *rpcError) {
				e := &rpcError{Code: 200, Message: "Odoo Server Error"}
				e.Data.Name = tt.exception
				e.Data.Message = "boom"
				return nil, e
			})

			_, err := c.Create(context.Background(), directory.Partner, directory.FieldMap{"name": "x"})
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestClient_UnreachableIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{URL: url, DB: "prod", Username: "u", Password: "p", Timeout: time.Second})
	_, err := c.Search(context.Background(), directory.Partner, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsConnectivity(err))
}

func TestClient_BadStatusIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := New(Config{URL: srv.URL, DB: "prod", Username: "u", Password: "p"})
	_, err := c.Login(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsConnectivity(err))
}

func TestEncodeDomain(t *testing.T) {
	d := filter.AnyOf(
		filter.Where("product_id", filter.IsNotNull, nil),
		filter.Where("product_tmpl_id", filter.IsNotNull, nil),
	).And(filter.NewDomain(filter.Where("pricelist_id", filter.InList, []int64{1, 2})))

	got, err := encodeDomain(d)
	require.NoError(t, err)
	assert.Equal(t, []any{
		"|",
		[]any{"product_id", "!=", false},
		[]any{"product_tmpl_id", "!=", false},
		[]any{"pricelist_id", "in", []int64{1, 2}},
	}, got)

	_, err = encodeDomain(filter.NewDomain(filter.Where("parent_id", filter.NotInHierarchy, 1)))
	assert.Error(t, err)
}
