package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/models"
	"github.com/relaycrm/sync-engine/pkg/pipedrive"
)

// FieldsClient is the slice of the Pipedrive client the mapper needs.
type FieldsClient interface {
	ListPersonFields(ctx context.Context) ([]pipedrive.FieldDefinition, error)
	GetPersonField(ctx context.Context, id int) (*pipedrive.FieldDefinition, error)
	CreatePersonField(ctx context.Context, name, fieldType string, options []string) (*pipedrive.FieldDefinition, error)
}

// FieldMapper resolves the semantic person fields against a Pipedrive
// installation's custom-field schema, provisioning any that are missing.
type FieldMapper interface {
	// ResolveOrCreateFields builds the run-scoped field mapping. A field that
	// cannot be resolved or created degrades to unmapped and is logged; a
	// failure to list the field schema at all is fatal.
	ResolveOrCreateFields(ctx context.Context) (*models.FieldMapping, error)
}

type fieldMapper struct {
	client FieldsClient
	logger *zap.Logger
}

// NewFieldMapper creates a new FieldMapper.
func NewFieldMapper(client FieldsClient, logger *zap.Logger) FieldMapper {
	return &fieldMapper{
		client: client,
		logger: logger.Named("field_mapper"),
	}
}

var _ FieldMapper = (*fieldMapper)(nil)

func (m *fieldMapper) ResolveOrCreateFields(ctx context.Context) (*models.FieldMapping, error) {
	defs, err := m.client.ListPersonFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list person fields: %w", apperrors.ErrMappingUnavailable, err)
	}

	byName := make(map[string]pipedrive.FieldDefinition, len(defs))
	for _, def := range defs {
		name := strings.ToLower(strings.TrimSpace(def.Name))
		if _, exists := byName[name]; exists {
			continue
		}
		byName[name] = def
	}

	mapping := models.NewFieldMapping()

	for _, field := range models.RequiredPersonFields {
		def, ok := byName[string(field)]
		if !ok {
			created, err := m.createField(ctx, field)
			if err != nil {
				m.logger.Warn("Field unavailable, values for it will not sync",
					zap.String("field", field.DisplayName()),
					zap.Error(err))
				continue
			}
			def = *created
		}

		mapping.Keys[field] = def.Key

		if field.IsEnum() {
			if err := m.loadOptions(ctx, field, def, mapping); err != nil {
				m.logger.Warn("Enum options unavailable, values for it will not sync",
					zap.String("field", field.DisplayName()),
					zap.Error(err))
				delete(mapping.Keys, field)
			}
		}
	}

	m.logger.Info("Resolved person field mapping",
		zap.Int("mapped", len(mapping.Keys)),
		zap.Int("required", len(models.RequiredPersonFields)))

	return mapping, nil
}

func (m *fieldMapper) createField(ctx context.Context, field models.SemanticField) (*pipedrive.FieldDefinition, error) {
	fieldType := "varchar"
	var options []string
	if field.IsEnum() {
		fieldType = "enum"
		options = models.ValidContactTypes
	}

	m.logger.Info("Creating missing person field",
		zap.String("field", field.DisplayName()),
		zap.String("type", fieldType))

	return m.client.CreatePersonField(ctx, field.DisplayName(), fieldType, options)
}

// loadOptions builds the id<->label tables for an enum field. The list
// endpoint omits options on some installations, so the per-field detail is
// fetched when the definition in hand has none.
func (m *fieldMapper) loadOptions(ctx context.Context, field models.SemanticField, def pipedrive.FieldDefinition, mapping *models.FieldMapping) error {
	options := def.Options
	if len(options) == 0 {
		detail, err := m.client.GetPersonField(ctx, def.ID)
		if err != nil {
			return err
		}
		options = detail.Options
	}
	if len(options) == 0 {
		return fmt.Errorf("field %q has no options", def.Name)
	}

	labelsByID := make(map[int]string, len(options))
	for _, opt := range options {
		labelsByID[opt.ID] = opt.Label
	}
	mapping.SetOptions(field, labelsByID)

	return nil
}
