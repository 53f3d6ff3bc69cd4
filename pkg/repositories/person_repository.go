package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/database"
	"github.com/relaycrm/sync-engine/pkg/models"
)

// PersonRepository provides data access for local contact records.
type PersonRepository interface {
	List(ctx context.Context) ([]*models.Person, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
	Create(ctx context.Context, person *models.Person) error
	// UpdateFields applies a partial update. Keys are column names from the
	// whitelist below; unknown keys are rejected. updated_at and
	// last_pipedrive_sync are both set to now so the pull is not re-detected
	// as a local edit on the next run.
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	// SetExternalID links or clears the remote id without touching updated_at.
	SetExternalID(ctx context.Context, id uuid.UUID, pipedriveID *int64) error
	// TouchSync advances last_pipedrive_sync to now without any content change.
	TouchSync(ctx context.Context, id uuid.UUID) error
}

type personRepository struct {
	db *database.DB
}

// NewPersonRepository creates a new PersonRepository.
func NewPersonRepository(db *database.DB) PersonRepository {
	return &personRepository{db: db}
}

var _ PersonRepository = (*personRepository)(nil)

// personColumns are the columns a partial update may set. Identifier and
// bookkeeping columns are managed through the dedicated methods.
var personColumns = map[string]bool{
	"full_name":              true,
	"work_email":             true,
	"personal_email":         true,
	"phone":                  true,
	"organization_id":        true,
	"linkedin_profile":       true,
	"title":                  true,
	"notes":                  true,
	"primary_contact_type":   true,
	"secondary_contact_type": true,
	"num_followers":          true,
	"headline":               true,
	"summary":                true,
	"location_name":          true,
}

const personSelectColumns = `id, full_name, work_email, personal_email, phone,
       organization_id, linkedin_profile, title, notes,
       primary_contact_type, secondary_contact_type, num_followers,
       headline, summary, location_name, pipedrive_id,
       updated_at, last_pipedrive_sync`

// ============================================================================
// Queries
// ============================================================================

func (r *personRepository) List(ctx context.Context) ([]*models.Person, error) {
	query := `
		SELECT ` + personSelectColumns + `
		FROM people
		ORDER BY full_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	var people []*models.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, person)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating people: %w", err)
	}

	return people, nil
}

func (r *personRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	query := `
		SELECT ` + personSelectColumns + `
		FROM people
		WHERE id = $1`

	person, err := scanPerson(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return person, nil
}

// ============================================================================
// Mutations
// ============================================================================

func (r *personRepository) Create(ctx context.Context, person *models.Person) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO people (
			full_name, work_email, personal_email, phone, organization_id,
			linkedin_profile, title, notes, primary_contact_type,
			secondary_contact_type, num_followers, headline, summary,
			location_name, pipedrive_id, updated_at, last_pipedrive_sync
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, updated_at`

	err := r.db.QueryRow(ctx, query,
		person.FullName,
		nullString(person.WorkEmail),
		nullString(person.PersonalEmail),
		nullString(person.Phone),
		person.OrganizationID,
		nullString(person.LinkedinProfile),
		nullString(person.Title),
		nullString(person.Notes),
		nullString(person.PrimaryContactType),
		nullString(person.SecondaryContactType),
		person.NumFollowers,
		nullString(person.Headline),
		nullString(person.Summary),
		nullString(person.LocationName),
		person.PipedriveID,
		now,
		person.LastPipedriveSync,
	).Scan(&person.ID, &person.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}

	return nil
}

func (r *personRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	set, args, err := buildSetClause(fields, personColumns)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE people
		SET %s, updated_at = $%d, last_pipedrive_sync = $%d
		WHERE id = $%d`,
		set, len(args)+1, len(args)+2, len(args)+3)
	args = append(args, now, now, id)

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *personRepository) SetExternalID(ctx context.Context, id uuid.UUID, pipedriveID *int64) error {
	query := `UPDATE people SET pipedrive_id = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, pipedriveID)
	if err != nil {
		return fmt.Errorf("failed to set person pipedrive id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *personRepository) TouchSync(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE people SET last_pipedrive_sync = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to touch person sync time: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanPerson(row pgx.Row) (*models.Person, error) {
	var p models.Person
	var workEmail, personalEmail, phone, linkedin, title, notes *string
	var primaryType, secondaryType, headline, summary, location *string

	err := row.Scan(
		&p.ID,
		&p.FullName,
		&workEmail,
		&personalEmail,
		&phone,
		&p.OrganizationID,
		&linkedin,
		&title,
		&notes,
		&primaryType,
		&secondaryType,
		&p.NumFollowers,
		&headline,
		&summary,
		&location,
		&p.PipedriveID,
		&p.UpdatedAt,
		&p.LastPipedriveSync,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan person: %w", err)
	}

	p.WorkEmail = derefString(workEmail)
	p.PersonalEmail = derefString(personalEmail)
	p.Phone = derefString(phone)
	p.LinkedinProfile = derefString(linkedin)
	p.Title = derefString(title)
	p.Notes = derefString(notes)
	p.PrimaryContactType = derefString(primaryType)
	p.SecondaryContactType = derefString(secondaryType)
	p.Headline = derefString(headline)
	p.Summary = derefString(summary)
	p.LocationName = derefString(location)

	return &p, nil
}

// buildSetClause renders "col = $1, col2 = $2" for a whitelisted field map.
// Column order is deterministic so tests can assert on queries.
func buildSetClause(fields map[string]any, whitelist map[string]bool) (string, []any, error) {
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if !whitelist[column] {
			return "", nil, fmt.Errorf("column %q is not updatable", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	clauses := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for i, column := range columns {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, i+1))
		args = append(args, fields[column])
	}

	return strings.Join(clauses, ", "), args, nil
}

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
