package pipedrive

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"pipedrive format", `"2024-03-15 10:30:00"`, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"rfc3339", `"2024-03-15T10:30:00Z"`, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
		{"empty string", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ts))
			assert.True(t, ts.Equal(tt.want), "got %v want %v", ts.Time, tt.want)
		})
	}
}

func TestTimestamp_UnmarshalInvalid(t *testing.T) {
	var ts Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestOrgRef_UnmarshalObject(t *testing.T) {
	var ref OrgRef
	require.NoError(t, json.Unmarshal([]byte(`{"value": 42, "name": "Acme Corp"}`), &ref))
	assert.Equal(t, int64(42), ref.Value)
	assert.Equal(t, "Acme Corp", ref.Name)
}

func TestOrgRef_UnmarshalBareID(t *testing.T) {
	var ref OrgRef
	require.NoError(t, json.Unmarshal([]byte(`42`), &ref))
	assert.Equal(t, int64(42), ref.Value)
	assert.Empty(t, ref.Name)
}

func TestPerson_UnmarshalCapturesCustomFields(t *testing.T) {
	raw := `{
		"id": 55,
		"name": "Jane Doe",
		"email": [{"label": "work", "value": "jane@co.com", "primary": true}],
		"phone": [{"label": "main", "value": "555-0100", "primary": true}],
		"org_id": {"value": 7, "name": "Co"},
		"update_time": "2024-03-15 10:30:00",
		"abc123deadbeef": "147",
		"another_custom_key": "https://linkedin.com/in/janedoe",
		"null_field": null
	}`

	var p Person
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, int64(55), p.ID)
	assert.Equal(t, "Jane Doe", p.Name)
	require.NotNil(t, p.OrgID)
	assert.Equal(t, int64(7), p.OrgID.Value)

	assert.Equal(t, "147", p.CustomFields["abc123deadbeef"])
	assert.Equal(t, "https://linkedin.com/in/janedoe", p.CustomFields["another_custom_key"])
	assert.NotContains(t, p.CustomFields, "null_field")
	assert.NotContains(t, p.CustomFields, "name")
}

func TestPerson_EmailByLabel(t *testing.T) {
	p := Person{Email: []EmailEntry{
		{Label: "work", Value: "jane@co.com", Primary: true},
		{Label: "personal", Value: "jane@home.net"},
	}}
	assert.Equal(t, "jane@co.com", p.EmailByLabel("work"))
	assert.Equal(t, "jane@home.net", p.EmailByLabel("personal"))
	assert.Empty(t, p.EmailByLabel("other"))
}

func TestPerson_PrimaryPhone(t *testing.T) {
	p := Person{Phone: []PhoneEntry{
		{Label: "mobile", Value: "555-0101"},
		{Label: "main", Value: "555-0100", Primary: true},
	}}
	assert.Equal(t, "555-0100", p.PrimaryPhone())

	noPrimary := Person{Phone: []PhoneEntry{{Label: "mobile", Value: "555-0101"}}}
	assert.Equal(t, "555-0101", noPrimary.PrimaryPhone())

	assert.Empty(t, (&Person{}).PrimaryPhone())
}

func TestPerson_EffectiveUpdateTime(t *testing.T) {
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	p := Person{AddTime: Timestamp{added}, UpdateTime: Timestamp{updated}}
	assert.Equal(t, updated, p.EffectiveUpdateTime())

	neverUpdated := Person{AddTime: Timestamp{added}}
	assert.Equal(t, added, neverUpdated.EffectiveUpdateTime())
}
