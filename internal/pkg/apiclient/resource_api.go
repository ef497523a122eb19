package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"helpdesk-dashboard/internal/domain/resource"
)

// MutationResult is the backend answer to create/update/delete.
type MutationResult struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ResourceAPI proxies CRUD calls for one dashboard resource.
type ResourceAPI struct {
	client *Client
	res    resource.Resource
}

func NewResourceAPI(client *Client, res resource.Resource) *ResourceAPI {
	return &ResourceAPI{client: client, res: res}
}

func (r *ResourceAPI) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	path := r.res.APIPath
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out json.RawMessage
	if err := r.client.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ResourceAPI) Get(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := r.client.Do(ctx, http.MethodGet, r.itemPath(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ResourceAPI) Create(ctx context.Context, body json.RawMessage) (*MutationResult, error) {
	return r.mutate(ctx, http.MethodPost, r.res.APIPath, body)
}

func (r *ResourceAPI) Update(ctx context.Context, id string, body json.RawMessage) (*MutationResult, error) {
	return r.mutate(ctx, http.MethodPut, r.itemPath(id), body)
}

func (r *ResourceAPI) Delete(ctx context.Context, id string) (*MutationResult, error) {
	return r.mutate(ctx, http.MethodDelete, r.itemPath(id), nil)
}

func (r *ResourceAPI) mutate(ctx context.Context, method, path string, body json.RawMessage) (*MutationResult, error) {
	var in any
	if body != nil {
		in = body
	}
	var out MutationResult
	if err := r.client.Do(ctx, method, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ResourceAPI) itemPath(id string) string {
	return r.res.APIPath + "/" + url.PathEscape(id)
}
