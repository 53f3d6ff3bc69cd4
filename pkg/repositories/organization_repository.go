package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/database"
	"github.com/relaycrm/sync-engine/pkg/models"
)

// OrganizationRepository provides data access for local company records.
type OrganizationRepository interface {
	List(ctx context.Context) ([]*models.Organization, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
	// UpdateFields applies a partial update with the same semantics as
	// PersonRepository.UpdateFields.
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	SetExternalID(ctx context.Context, id uuid.UUID, pipedriveOrgID *int64) error
	TouchSync(ctx context.Context, id uuid.UUID) error
}

type organizationRepository struct {
	db *database.DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db *database.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

var _ OrganizationRepository = (*organizationRepository)(nil)

var organizationColumns = map[string]bool{
	"name":              true,
	"website_url":       true,
	"normalized_domain": true,
}

const organizationSelectColumns = `id, name, website_url, normalized_domain,
       pipedrive_org_id, updated_at, last_pipedrive_sync`

// ============================================================================
// Queries
// ============================================================================

func (r *organizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT ` + organizationSelectColumns + `
		FROM organizations
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	return orgs, nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT ` + organizationSelectColumns + `
		FROM organizations
		WHERE id = $1`

	org, err := scanOrganization(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return org, nil
}

// ============================================================================
// Mutations
// ============================================================================

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO organizations (
			name, website_url, normalized_domain, pipedrive_org_id,
			updated_at, last_pipedrive_sync
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, updated_at`

	err := r.db.QueryRow(ctx, query,
		org.Name,
		nullString(org.WebsiteURL),
		nullString(org.NormalizedDomain),
		org.PipedriveOrgID,
		now,
		org.LastPipedriveSync,
	).Scan(&org.ID, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

func (r *organizationRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	set, args, err := buildSetClause(fields, organizationColumns)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE organizations
		SET %s, updated_at = $%d, last_pipedrive_sync = $%d
		WHERE id = $%d`,
		set, len(args)+1, len(args)+2, len(args)+3)
	args = append(args, now, now, id)

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *organizationRepository) SetExternalID(ctx context.Context, id uuid.UUID, pipedriveOrgID *int64) error {
	query := `UPDATE organizations SET pipedrive_org_id = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, pipedriveOrgID)
	if err != nil {
		return fmt.Errorf("failed to set organization pipedrive id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *organizationRepository) TouchSync(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE organizations SET last_pipedrive_sync = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to touch organization sync time: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	var websiteURL, normalizedDomain *string

	err := row.Scan(
		&o.ID,
		&o.Name,
		&websiteURL,
		&normalizedDomain,
		&o.PipedriveOrgID,
		&o.UpdatedAt,
		&o.LastPipedriveSync,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}

	o.WebsiteURL = derefString(websiteURL)
	o.NormalizedDomain = derefString(normalizedDomain)

	return &o, nil
}
