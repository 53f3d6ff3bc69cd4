package pipedrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/logging"
)

// ListOrganizations retrieves the complete organizations collection with the
// same pagination and partial-data semantics as ListPersons.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var all []Organization
	start := 0

	for {
		env, err := c.doEnvelope(ctx, http.MethodGet, "/organizations", pageQuery(start, c.pageLimit), nil)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return all, err
			}
			c.logger.Warn("Organization fetch terminated early",
				zap.Int("fetched", len(all)),
				zap.String("error", logging.SanitizeError(err)))
			return all, nil
		}

		var page []Organization
		if err := env.decode(&page); err != nil {
			c.logger.Warn("Organization page could not be decoded, stopping fetch",
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

	c.logger.Info("Fetched organizations from Pipedrive", zap.Int("count", len(all)))
	return all, nil
}

// CreateOrganization creates a remote organization and returns the created record.
func (c *Client) CreateOrganization(ctx context.Context, body OrganizationInput) (*Organization, error) {
	var created Organization
	if err := c.do(ctx, http.MethodPost, "/organizations", nil, body, &created); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return &created, nil
}

// UpdateOrganization updates a remote organization by id. A 404 comes back
// wrapped in apperrors.ErrRemoteNotFound, same as UpdatePerson.
func (c *Client) UpdateOrganization(ctx context.Context, id int64, body OrganizationInput) (*Organization, error) {
	var updated Organization
	path := "/organizations/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &updated); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: organization %d: %w", apperrors.ErrRemoteNotFound, id, err)
		}
		return nil, err
	}
	return &updated, nil
}
