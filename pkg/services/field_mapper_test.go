package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/models"
	"github.com/relaycrm/sync-engine/pkg/pipedrive"
)

type mockFieldsClient struct {
	fields    []pipedrive.FieldDefinition
	details   map[int]*pipedrive.FieldDefinition
	listErr   error
	createErr error

	created []string
	nextID  int
}

func (m *mockFieldsClient) ListPersonFields(ctx context.Context) ([]pipedrive.FieldDefinition, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.fields, nil
}

func (m *mockFieldsClient) GetPersonField(ctx context.Context, id int) (*pipedrive.FieldDefinition, error) {
	detail, ok := m.details[id]
	if !ok {
		return nil, errors.New("no such field")
	}
	return detail, nil
}

func (m *mockFieldsClient) CreatePersonField(ctx context.Context, name, fieldType string, options []string) (*pipedrive.FieldDefinition, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, name)
	m.nextID++
	def := pipedrive.FieldDefinition{
		ID:        1000 + m.nextID,
		Key:       "created_" + name,
		Name:      name,
		FieldType: fieldType,
	}
	for i, label := range options {
		def.Options = append(def.Options, pipedrive.FieldOption{ID: 100 + i, Label: label})
	}
	return &def, nil
}

func contactTypeOptions() []pipedrive.FieldOption {
	opts := make([]pipedrive.FieldOption, 0, len(models.ValidContactTypes))
	for i, label := range models.ValidContactTypes {
		opts = append(opts, pipedrive.FieldOption{ID: 140 + i, Label: label})
	}
	return opts
}

func allSemanticFieldDefs() []pipedrive.FieldDefinition {
	defs := []pipedrive.FieldDefinition{
		{ID: 1, Key: "key_linkedin", Name: "LinkedIn Profile", FieldType: "varchar"},
		{ID: 2, Key: "key_title", Name: "Job Title", FieldType: "varchar"},
		{ID: 3, Key: "key_primary", Name: "Primary Contact Type", FieldType: "enum", Options: contactTypeOptions()},
		{ID: 4, Key: "key_secondary", Name: "Secondary Contact Type", FieldType: "enum", Options: contactTypeOptions()},
		{ID: 5, Key: "key_headline", Name: "Headline", FieldType: "varchar"},
		{ID: 6, Key: "key_summary", Name: "Summary", FieldType: "varchar"},
		{ID: 7, Key: "key_followers", Name: "LinkedIn Followers", FieldType: "varchar"},
		{ID: 8, Key: "key_location", Name: "Location", FieldType: "varchar"},
	}
	return defs
}

func TestFieldMapper_ResolvesExistingFields(t *testing.T) {
	client := &mockFieldsClient{fields: allSemanticFieldDefs()}
	mapper := NewFieldMapper(client, zap.NewNop())

	mapping, err := mapper.ResolveOrCreateFields(context.Background())
	require.NoError(t, err)
	assert.Empty(t, client.created)

	require.Len(t, mapping.Keys, len(models.RequiredPersonFields))
	key, ok := mapping.Key(models.FieldLinkedinProfile)
	require.True(t, ok)
	assert.Equal(t, "key_linkedin", key)

	// Option tables cover both directions.
	label, ok := mapping.Label(models.FieldPrimaryContactType, 144)
	require.True(t, ok)
	assert.Equal(t, "Institutional Donor", label)

	id, ok := mapping.OptionID(models.FieldPrimaryContactType, "Staff")
	require.True(t, ok)
	assert.Equal(t, 157, id)
}

func TestFieldMapper_MatchIsCaseInsensitive(t *testing.T) {
	client := &mockFieldsClient{fields: []pipedrive.FieldDefinition{
		{ID: 1, Key: "key_headline", Name: "  HEADLINE ", FieldType: "varchar"},
	}}
	mapper := NewFieldMapper(client, zap.NewNop())

	mapping, err := mapper.ResolveOrCreateFields(context.Background())
	require.NoError(t, err)

	key, ok := mapping.Key(models.FieldHeadline)
	require.True(t, ok)
	assert.Equal(t, "key_headline", key)
	assert.NotContains(t, client.created, "Headline")
}

func TestFieldMapper_CreatesMissingFields(t *testing.T) {
	client := &mockFieldsClient{}
	mapper := NewFieldMapper(client, zap.NewNop())

	mapping, err := mapper.ResolveOrCreateFields(context.Background())
	require.NoError(t, err)

	require.Len(t, client.created, len(models.RequiredPersonFields))
	assert.Contains(t, client.created, "Primary Contact Type")
	assert.Contains(t, client.created, "LinkedIn Followers")

	// Created enum fields come back with their full option list.
	_, ok := mapping.Key(models.FieldPrimaryContactType)
	require.True(t, ok)
	id, ok := mapping.OptionID(models.FieldPrimaryContactType, "Vendor")
	require.True(t, ok)
	assert.Positive(t, id)
}

func TestFieldMapper_FetchesDetailWhenListOmitsOptions(t *testing.T) {
	defs := allSemanticFieldDefs()
	defs[2].Options = nil
	client := &mockFieldsClient{
		fields: defs,
		details: map[int]*pipedrive.FieldDefinition{
			3: {ID: 3, Key: "key_primary", Name: "Primary Contact Type", FieldType: "enum", Options: contactTypeOptions()},
		},
	}
	mapper := NewFieldMapper(client, zap.NewNop())

	mapping, err := mapper.ResolveOrCreateFields(context.Background())
	require.NoError(t, err)

	_, ok := mapping.OptionID(models.FieldPrimaryContactType, "Board")
	assert.True(t, ok)
}

func TestFieldMapper_DegradesSingleField(t *testing.T) {
	defs := allSemanticFieldDefs()
	defs[3].Options = nil // secondary contact type, detail lookup also fails
	client := &mockFieldsClient{fields: defs}
	mapper := NewFieldMapper(client, zap.NewNop())

	mapping, err := mapper.ResolveOrCreateFields(context.Background())
	require.NoError(t, err)

	_, ok := mapping.Key(models.FieldSecondaryContactType)
	assert.False(t, ok, "field without options must stay unmapped")

	_, ok = mapping.Key(models.FieldPrimaryContactType)
	assert.True(t, ok, "other fields stay mapped")
}

func TestFieldMapper_ListFailureIsFatal(t *testing.T) {
	client := &mockFieldsClient{listErr: errors.New("boom")}
	mapper := NewFieldMapper(client, zap.NewNop())

	_, err := mapper.ResolveOrCreateFields(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMappingUnavailable)
}

func TestFieldMapper_CreateFailureDegrades(t *testing.T) {
	client := &mockFieldsClient{createErr: errors.New("no permission")}
	mapper := NewFieldMapper(client, zap.NewNop())

	mapping, err := mapper.ResolveOrCreateFields(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mapping.Keys)
}
