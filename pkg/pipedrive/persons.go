package pipedrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/logging"
)

// ListPersons retrieves the complete persons collection, advancing a
// fixed-size offset cursor until the API reports no more items or a page
// comes back short. A failed page terminates the fetch with whatever was
// accumulated so far: bulk fetch degrades to partial data rather than
// failing the run. Only context cancellation is surfaced as an error.
func (c *Client) ListPersons(ctx context.Context) ([]Person, error) {
	var all []Person
	start := 0

	for {
		env, err := c.doEnvelope(ctx, http.MethodGet, "/persons", pageQuery(start, c.pageLimit), nil)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return all, err
			}
			c.logger.Warn("Person fetch terminated early",
				zap.Int("fetched", len(all)),
				zap.String("error", logging.SanitizeError(err)))
			return all, nil
		}

		var page []Person
		if err := env.decode(&page); err != nil {
			c.logger.Warn("Person page could not be decoded, stopping fetch",
				zap.Int("fetched", len(all)),
				zap.Error(err))
			return all, nil
		}

		all = append(all, page...)
		if !env.moreItems() || len(page) < c.pageLimit {
			break
		}
		start += c.pageLimit
	}

	c.logger.Info("Fetched persons from Pipedrive", zap.Int("count", len(all)))
	return all, nil
}

// CreatePerson creates a remote person and returns the created record.
func (c *Client) CreatePerson(ctx context.Context, body PersonInput) (*Person, error) {
	var created Person
	if err := c.do(ctx, http.MethodPost, "/persons", nil, body, &created); err != nil {
		return nil, fmt.Errorf("failed to create person: %w", err)
	}
	return &created, nil
}

// UpdatePerson updates a remote person by id and returns the updated record.
// A 404 comes back wrapped in apperrors.ErrRemoteNotFound: the stored remote
// id is stale and the caller falls back to a create.
func (c *Client) UpdatePerson(ctx context.Context, id int64, body PersonInput) (*Person, error) {
	var updated Person
	path := "/persons/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &updated); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: person %d: %w", apperrors.ErrRemoteNotFound, id, err)
		}
		return nil, err
	}
	return &updated, nil
}

// SearchPersonByEmail looks up a remote person by exact email match.
// Returns (nil, nil) when nothing matches.
func (c *Client) SearchPersonByEmail(ctx context.Context, email string) (*SearchPerson, error) {
	query := url.Values{
		"term":        {email},
		"fields":      {"email"},
		"exact_match": {"true"},
		"limit":       {"1"},
	}

	var data searchData
	if err := c.do(ctx, http.MethodGet, "/persons/search", query, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to search person by email: %w", err)
	}
	if len(data.Items) == 0 {
		return nil, nil
	}
	found := data.Items[0].Item
	return &found, nil
}

func pageQuery(start, limit int) url.Values {
	return url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}
}
