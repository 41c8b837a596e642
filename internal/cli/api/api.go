// Package api is the typed client for the problem record endpoints. Every
// call yields a Result; transport and server failures never surface as
// Go errors, and Data always holds the empty default on failure.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	httpclient "switchdesk/internal/cli/http"
	"switchdesk/internal/problem/model"
	pkgerrors "switchdesk/pkg/errors"
	pkgrepo "switchdesk/pkg/repository"
)

const basePath = "/api/v1/problems"

// Result is the discriminated outcome of one call.
type Result[T any] struct {
	Success bool
	Data    T
	Error   string
	// Fields holds per-field validation messages, if any.
	Fields map[string]string
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](fallback T, format string, args ...interface{}) Result[T] {
	return Result[T]{Data: fallback, Error: fmt.Sprintf(format, args...)}
}

// QueryParams selects one listing window. Page is 0-indexed.
type QueryParams struct {
	Search   string
	Sort     []pkgrepo.SortField
	Page     int
	PageSize int
}

// CreateRequest is the creation payload.
type CreateRequest struct {
	Operator   string `json:"operator"`
	Commutator string `json:"commutator"`
	ProductID  string `json:"product_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date,omitempty"`
	Note       string `json:"note,omitempty"`
	Status     string `json:"status,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

// Doer performs one HTTP exchange.
type Doer interface {
	Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (httpclient.ResponseInfo, error)
}

// Client calls the problem endpoints.
type Client struct {
	http Doer
}

func New(doer Doer) *Client {
	return &Client{http: doer}
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details struct {
		Fields map[string]string `json:"fields"`
	} `json:"details"`
}

func call[T any](ctx context.Context, c *Client, method, path string, body interface{}, fallback T) Result[T] {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fail(fallback, "encode request: %v", err)
		}
	}
	resp, err := c.http.Do(ctx, method, path, nil, payload)
	if err != nil {
		return fail(fallback, "%v", err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fail(fallback, "HTTP %d: unreadable response", resp.StatusCode)
	}
	if !env.Success || env.Code != int(pkgerrors.Success) {
		result := fail(fallback, "%s", env.Message)
		result.Fields = env.Details.Fields
		return result
	}
	var data T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fail(fallback, "decode response: %v", err)
		}
	}
	return ok(data)
}

// Query fetches one page of the listing.
func (c *Client) Query(ctx context.Context, params QueryParams) Result[model.Page] {
	values := url.Values{}
	if params.Search != "" {
		values.Set("search", params.Search)
	}
	if sort := pkgrepo.FormatSort(params.Sort); sort != "" {
		values.Set("sort", sort)
	}
	values.Set("page", strconv.Itoa(params.Page))
	values.Set("page_size", strconv.Itoa(params.PageSize))

	page := pkgrepo.PageRequest{PageIndex: params.Page, PageSize: params.PageSize}.Normalize()
	fallback := pkgrepo.NewPaginationResult[model.Problem](nil, 0, page)
	result := call(ctx, c, http.MethodGet, basePath+"/query?"+values.Encode(), nil, fallback)
	if result.Data.Items == nil {
		result.Data.Items = []model.Problem{}
	}
	return result
}

// List fetches every record.
func (c *Client) List(ctx context.Context) Result[[]model.Problem] {
	return nonNil(call(ctx, c, http.MethodGet, basePath, nil, []model.Problem{}))
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, id int64) Result[model.Problem] {
	return call(ctx, c, http.MethodGet, basePath+"/"+strconv.FormatInt(id, 10), nil, model.Problem{})
}

// Create submits a new record.
func (c *Client) Create(ctx context.Context, req CreateRequest) Result[model.Problem] {
	return call(ctx, c, http.MethodPost, basePath, req, model.Problem{})
}

// Operators lists the distinct operators.
func (c *Client) Operators(ctx context.Context) Result[[]string] {
	return nonNil(call(ctx, c, http.MethodGet, basePath+"/operators", nil, []string{}))
}

// Commutators lists the distinct commutators of operator.
func (c *Client) Commutators(ctx context.Context, operator string) Result[[]string] {
	path := basePath + "/commutators?" + url.Values{"operator": {operator}}.Encode()
	return nonNil(call(ctx, c, http.MethodGet, path, nil, []string{}))
}

// Aggregates fetches the chart series.
func (c *Client) Aggregates(ctx context.Context) Result[model.Aggregates] {
	result := call(ctx, c, http.MethodGet, basePath+"/aggregates", nil, model.EmptyAggregates())
	if result.Data.Operator == nil {
		result.Data.Operator = []model.GroupCount{}
	}
	if result.Data.Commutator == nil {
		result.Data.Commutator = []model.GroupCount{}
	}
	return result
}

func nonNil[T any](result Result[[]T]) Result[[]T] {
	if result.Data == nil {
		result.Data = []T{}
	}
	return result
}
