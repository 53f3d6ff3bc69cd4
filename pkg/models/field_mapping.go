package models

// SemanticField names a custom person field by what it means, independent of
// the opaque per-installation key Pipedrive assigns to it.
type SemanticField string

const (
	FieldLinkedinProfile      SemanticField = "linkedin profile"
	FieldJobTitle             SemanticField = "job title"
	FieldPrimaryContactType   SemanticField = "primary contact type"
	FieldSecondaryContactType SemanticField = "secondary contact type"
	FieldHeadline             SemanticField = "headline"
	FieldSummary              SemanticField = "summary"
	FieldLinkedinFollowers    SemanticField = "linkedin followers"
	FieldLocation             SemanticField = "location"
)

// RequiredPersonFields lists every semantic field the reconciler translates.
var RequiredPersonFields = []SemanticField{
	FieldLinkedinProfile,
	FieldJobTitle,
	FieldPrimaryContactType,
	FieldSecondaryContactType,
	FieldHeadline,
	FieldSummary,
	FieldLinkedinFollowers,
	FieldLocation,
}

// DisplayName returns the human-readable field name used when matching against
// or provisioning Pipedrive field definitions. Matching is case-insensitive,
// so DisplayName and the SemanticField value compare equal.
func (f SemanticField) DisplayName() string {
	switch f {
	case FieldLinkedinProfile:
		return "LinkedIn Profile"
	case FieldJobTitle:
		return "Job Title"
	case FieldPrimaryContactType:
		return "Primary Contact Type"
	case FieldSecondaryContactType:
		return "Secondary Contact Type"
	case FieldHeadline:
		return "Headline"
	case FieldSummary:
		return "Summary"
	case FieldLinkedinFollowers:
		return "LinkedIn Followers"
	case FieldLocation:
		return "Location"
	default:
		return string(f)
	}
}

// IsEnum reports whether the field is a single-option enum on the remote side.
// Enum values travel as numeric option ids and need id<->label translation.
func (f SemanticField) IsEnum() bool {
	return f == FieldPrimaryContactType || f == FieldSecondaryContactType
}

// FieldMapping is the run-scoped translation table between semantic field
// names and Pipedrive's opaque custom-field keys. It is rebuilt on every sync
// run and never persisted: option ids differ between installations.
type FieldMapping struct {
	// Keys maps a semantic field to the opaque field key.
	Keys map[SemanticField]string
	// OptionLabels maps enum option id -> label, per enum field.
	OptionLabels map[SemanticField]map[int]string
	// OptionIDs maps enum label -> option id, per enum field.
	OptionIDs map[SemanticField]map[string]int
}

// NewFieldMapping returns an empty mapping with all tables initialized.
func NewFieldMapping() *FieldMapping {
	return &FieldMapping{
		Keys:         make(map[SemanticField]string),
		OptionLabels: make(map[SemanticField]map[int]string),
		OptionIDs:    make(map[SemanticField]map[string]int),
	}
}

// Key returns the opaque field key for a semantic field, if mapped.
func (m *FieldMapping) Key(f SemanticField) (string, bool) {
	k, ok := m.Keys[f]
	return k, ok
}

// Label translates an enum option id to its label. A missing entry means the
// option id is unknown to this installation and the value must be dropped.
func (m *FieldMapping) Label(f SemanticField, optionID int) (string, bool) {
	opts, ok := m.OptionLabels[f]
	if !ok {
		return "", false
	}
	label, ok := opts[optionID]
	return label, ok
}

// OptionID translates an enum label to its option id for remote writes.
func (m *FieldMapping) OptionID(f SemanticField, label string) (int, bool) {
	opts, ok := m.OptionIDs[f]
	if !ok {
		return 0, false
	}
	id, ok := opts[label]
	return id, ok
}

// SetOptions installs both directions of the option table for an enum field.
func (m *FieldMapping) SetOptions(f SemanticField, labelsByID map[int]string) {
	labels := make(map[int]string, len(labelsByID))
	ids := make(map[string]int, len(labelsByID))
	for id, label := range labelsByID {
		labels[id] = label
		ids[label] = id
	}
	m.OptionLabels[f] = labels
	m.OptionIDs[f] = ids
}
