package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/roleboard/roleboard/internal/rbac"
)

// CatalogEntry is one assignable (name, type) pair together with the catalog
// IDs that grant it.
type CatalogEntry struct {
	Name string
	Type rbac.PermissionType
	IDs  []string
}

type catalogBody struct {
	Data map[string]map[string][]struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

var typeOrder = map[rbac.PermissionType]int{
	rbac.PermissionGet:    0,
	rbac.PermissionCreate: 1,
	rbac.PermissionUpdate: 2,
	rbac.PermissionDelete: 3,
}

// PermissionCatalog decodes the catalog, grouped upstream as
// {"data":{name:{type:[{"id":..}]}}}, into entries sorted by name and then by
// get, create, update, delete. Unknown types sort last.
func (c *Client) PermissionCatalog(ctx context.Context, token string) ([]CatalogEntry, error) {
	resp, err := c.ListPermissions(ctx, token)
	if err != nil {
		return nil, err
	}
	var body catalogBody
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("upstream: decode permissions: %w", err)
	}
	var out []CatalogEntry
	for name, types := range body.Data {
		for typ, items := range types {
			entry := CatalogEntry{Name: name, Type: rbac.PermissionType(typ)}
			for _, item := range items {
				if id := item.ID.String(); id != "" {
					entry.IDs = append(entry.IDs, id)
				}
			}
			if len(entry.IDs) > 0 {
				out = append(out, entry)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		oi, ok := typeOrder[out[i].Type]
		if !ok {
			oi = len(typeOrder)
		}
		oj, ok := typeOrder[out[j].Type]
		if !ok {
			oj = len(typeOrder)
		}
		if oi != oj {
			return oi < oj
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// ListPermissions returns the permission catalog visible to token. Replies are
// cached per token; concurrent misses for the same token share one call.
// Requests without a token bypass the cache entirely.
func (c *Client) ListPermissions(ctx context.Context, token string) (*Response, error) {
	key := BearerToken(token)
	if key == "" {
		return c.fetchPermissions(ctx, token)
	}
	if body, ok := c.catalog.Get(key); ok {
		return &Response{Status: http.StatusOK, Body: body}, nil
	}

	ch := c.catalogGroup.DoChan(key, func() (interface{}, error) {
		resp, err := c.fetchPermissions(context.WithoutCancel(ctx), token)
		if err != nil {
			return nil, err
		}
		c.catalog.Add(key, resp.Body)
		return resp, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Response), nil
	}
}

func (c *Client) fetchPermissions(ctx context.Context, token string) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "list_permissions",
		Method:        http.MethodGet,
		Path:          "/permissions",
		Authorization: token,
		Fallback:      "Couldn't fetch permissions",
	})
}

// ForgetPermissions drops the cached catalog for token, e.g. on logout.
func (c *Client) ForgetPermissions(token string) {
	c.catalog.Remove(BearerToken(token))
}
