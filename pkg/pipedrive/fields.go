package pipedrive

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// ListPersonFields retrieves every person custom-field definition.
func (c *Client) ListPersonFields(ctx context.Context) ([]FieldDefinition, error) {
	var fields []FieldDefinition
	if err := c.do(ctx, http.MethodGet, "/personFields", nil, nil, &fields); err != nil {
		return nil, fmt.Errorf("failed to list person fields: %w", err)
	}
	return fields, nil
}

// GetPersonField retrieves one field definition with its full option list.
// The list endpoint omits options on some installations, so enum option
// tables are always built from this per-field detail.
func (c *Client) GetPersonField(ctx context.Context, id int) (*FieldDefinition, error) {
	var field FieldDefinition
	path := "/personFields/" + strconv.Itoa(id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &field); err != nil {
		return nil, fmt.Errorf("failed to get person field %d: %w", id, err)
	}
	return &field, nil
}

// CreatePersonField provisions a custom field. For enum fields, options
// carries the full fixed label list to create.
func (c *Client) CreatePersonField(ctx context.Context, name, fieldType string, options []string) (*FieldDefinition, error) {
	body := map[string]any{
		"name":       name,
		"field_type": fieldType,
	}
	if len(options) > 0 {
		opts := make([]map[string]string, 0, len(options))
		for _, label := range options {
			opts = append(opts, map[string]string{"label": label})
		}
		body["options"] = opts
	}

	var created FieldDefinition
	if err := c.do(ctx, http.MethodPost, "/personFields", nil, body, &created); err != nil {
		return nil, fmt.Errorf("failed to create person field %q: %w", name, err)
	}
	return &created, nil
}
