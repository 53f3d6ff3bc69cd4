package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/models"
	"github.com/relaycrm/sync-engine/pkg/testhelpers"
)

func TestPersonRepository_CreateAndGet(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateSyncTables(t, testDB.DB)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()

	followers := 1200
	person := &models.Person{
		FullName:           "Jane Doe",
		WorkEmail:          "jane@acme.com",
		PersonalEmail:      "jane@home.net",
		Phone:              "555-0100",
		LinkedinProfile:    "https://linkedin.com/in/janedoe",
		Title:              "VP Engineering",
		PrimaryContactType: "Staff",
		NumFollowers:       &followers,
		Headline:           "Engineering leader",
		LocationName:       "Denver, CO",
	}

	require.NoError(t, repo.Create(ctx, person))
	require.NotEqual(t, uuid.Nil, person.ID)
	require.False(t, person.UpdatedAt.IsZero())

	got, err := repo.GetByID(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.FullName)
	assert.Equal(t, "jane@acme.com", got.WorkEmail)
	assert.Equal(t, "jane@home.net", got.PersonalEmail)
	assert.Equal(t, "Staff", got.PrimaryContactType)
	require.NotNil(t, got.NumFollowers)
	assert.Equal(t, 1200, *got.NumFollowers)
	assert.Nil(t, got.PipedriveID)
	assert.Nil(t, got.LastPipedriveSync)
	assert.Empty(t, got.Notes)
}

func TestPersonRepository_GetByID_NotFound(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewPersonRepository(testDB.DB)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPersonRepository_List(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateSyncTables(t, testDB.DB)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()

	for _, name := range []string{"Charlie Woo", "Alice Smith", "Bob Jones"} {
		require.NoError(t, repo.Create(ctx, &models.Person{FullName: name}))
	}

	people, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, people, 3)
	assert.Equal(t, "Alice Smith", people[0].FullName)
	assert.Equal(t, "Bob Jones", people[1].FullName)
	assert.Equal(t, "Charlie Woo", people[2].FullName)
}

func TestPersonRepository_UpdateFields(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateSyncTables(t, testDB.DB)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()

	person := &models.Person{FullName: "Jane Doe"}
	require.NoError(t, repo.Create(ctx, person))
	created := person.UpdatedAt

	err := repo.UpdateFields(ctx, person.ID, map[string]any{
		"title":    "CTO",
		"headline": "Now leading platform",
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, "CTO", got.Title)
	assert.Equal(t, "Now leading platform", got.Headline)
	assert.True(t, got.UpdatedAt.After(created) || got.UpdatedAt.Equal(created))
	require.NotNil(t, got.LastPipedriveSync)
	assert.WithinDuration(t, got.UpdatedAt, *got.LastPipedriveSync, time.Second)
}

func TestPersonRepository_UpdateFields_RejectsUnknownColumn(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateSyncTables(t, testDB.DB)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()

	person := &models.Person{FullName: "Jane Doe"}
	require.NoError(t, repo.Create(ctx, person))

	err := repo.UpdateFields(ctx, person.ID, map[string]any{"pipedrive_id": int64(5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not updatable")
}

func TestPersonRepository_UpdateFields_EmptyMapIsNoop(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateSyncTables(t, testDB.DB)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()

	person := &models.Person{FullName: "Jane Doe"}
	require.NoError(t, repo.Create(ctx, person))

	require.NoError(t, repo.UpdateFields(ctx, person.ID, nil))

	got, err := repo.GetByID(ctx, person.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastPipedriveSync)
}

func TestPersonRepository_SetExternalID_DoesNotTouchUpdatedAt(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateSyncTables(t, testDB.DB)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()

	person := &models.Person{FullName: "Jane Doe"}
	require.NoError(t, repo.Create(ctx, person))

	id := int64(55)
	require.NoError(t, repo.SetExternalID(ctx, person.ID, &id))

	got, err := repo.GetByID(ctx, person.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PipedriveID)
	assert.Equal(t, int64(55), *got.PipedriveID)
	assert.WithinDuration(t, person.UpdatedAt, got.UpdatedAt, time.Millisecond)

	// Clearing a stale id.
	require.NoError(t, repo.SetExternalID(ctx, person.ID, nil))
	got, err = repo.GetByID(ctx, person.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PipedriveID)
}

func TestPersonRepository_TouchSync(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateSyncTables(t, testDB.DB)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()

	person := &models.Person{FullName: "Jane Doe"}
	require.NoError(t, repo.Create(ctx, person))

	require.NoError(t, repo.TouchSync(ctx, person.ID))

	got, err := repo.GetByID(ctx, person.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastPipedriveSync)
	assert.WithinDuration(t, person.UpdatedAt, got.UpdatedAt, time.Millisecond)
}

func TestPersonRepository_MutationsOnMissingRow(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewPersonRepository(testDB.DB)
	ctx := context.Background()
	missing := uuid.New()

	assert.ErrorIs(t, repo.UpdateFields(ctx, missing, map[string]any{"title": "x"}), apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.SetExternalID(ctx, missing, nil), apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.TouchSync(ctx, missing), apperrors.ErrNotFound)
}
