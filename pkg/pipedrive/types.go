// Package pipedrive provides a typed client for the Pipedrive REST API.
// The ambiguous wire shapes (object-or-id references, opaque custom-field
// keys, space-separated timestamps) are normalized here and never leak past
// this package.
package pipedrive

import (
	"encoding/json"
	"fmt"
	"time"
)

// timeLayout is Pipedrive's timestamp format, always UTC.
const timeLayout = "2006-01-02 15:04:05"

// Timestamp wraps time.Time to decode Pipedrive's timestamp format. Empty
// strings and nulls decode to the zero time.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	if ts, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		t.Time = ts
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q", s)
	}
	t.Time = ts.UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(timeLayout))
}

// EmailEntry is one labeled email address on a remote person. At most one
// entry is marked primary.
type EmailEntry struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

// PhoneEntry is one labeled phone number on a remote person.
type PhoneEntry struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

// OrgRef is a person's organization reference. On the wire it is usually an
// object carrying at least {value, name}, but write responses may carry a
// bare numeric id; both shapes decode to the same struct.
type OrgRef struct {
	Value int64  `json:"value"`
	Name  string `json:"name"`
}

func (r *OrgRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = OrgRef{}
		return nil
	}

	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*r = OrgRef{Value: id}
		return nil
	}

	type alias OrgRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = OrgRef(a)
	return nil
}

// Person is the remote system's representation of a contact. CustomFields
// collects every top-level key outside the standard set; custom-field values
// are keyed by opaque per-installation field keys, so lookups into
// CustomFields always go through a resolved field mapping.
type Person struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	Email      []EmailEntry `json:"email"`
	Phone      []PhoneEntry `json:"phone"`
	OrgID      *OrgRef      `json:"org_id"`
	Notes      string       `json:"notes"`
	AddTime    Timestamp    `json:"add_time"`
	UpdateTime Timestamp    `json:"update_time"`

	CustomFields map[string]any `json:"-"`
}

var knownPersonKeys = map[string]bool{
	"id":          true,
	"name":        true,
	"email":       true,
	"phone":       true,
	"org_id":      true,
	"notes":       true,
	"add_time":    true,
	"update_time": true,
}

func (p *Person) UnmarshalJSON(data []byte) error {
	type alias Person
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// Standard fields outside the known set land here too (owner_id, deal
	// counts, ...). That is harmless: custom-field reads are driven by the
	// resolved mapping keys, never by iterating this map.
	a.CustomFields = make(map[string]any)
	for k, v := range raw {
		if knownPersonKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil || val == nil {
			continue
		}
		a.CustomFields[k] = val
	}

	*p = Person(a)
	return nil
}

// EmailByLabel returns the first email entry with the given label, or "".
func (p *Person) EmailByLabel(label string) string {
	for _, e := range p.Email {
		if e.Label == label {
			return e.Value
		}
	}
	return ""
}

// PrimaryPhone returns the entry marked primary, falling back to the first.
func (p *Person) PrimaryPhone() string {
	for _, ph := range p.Phone {
		if ph.Primary {
			return ph.Value
		}
	}
	if len(p.Phone) > 0 {
		return p.Phone[0].Value
	}
	return ""
}

// EffectiveUpdateTime is update_time, falling back to add_time for records
// never modified since creation.
func (p *Person) EffectiveUpdateTime() time.Time {
	if !p.UpdateTime.IsZero() {
		return p.UpdateTime.Time
	}
	return p.AddTime.Time
}

// Organization is the remote system's representation of a company.
type Organization struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	CCEmail    string    `json:"cc_email"`
	AddTime    Timestamp `json:"add_time"`
	UpdateTime Timestamp `json:"update_time"`
}

// EffectiveUpdateTime is update_time, falling back to add_time.
func (o *Organization) EffectiveUpdateTime() time.Time {
	if !o.UpdateTime.IsZero() {
		return o.UpdateTime.Time
	}
	return o.AddTime.Time
}

// FieldDefinition is a person custom-field definition. Key is the opaque
// per-installation key custom values are stored under.
type FieldDefinition struct {
	ID        int           `json:"id"`
	Key       string        `json:"key"`
	Name      string        `json:"name"`
	FieldType string        `json:"field_type"`
	Options   []FieldOption `json:"options"`
}

// FieldOption is one enumerated option of an enum field.
type FieldOption struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// SearchPerson is the minimal person shape returned by the search endpoint.
type SearchPerson struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type searchData struct {
	Items []struct {
		Item SearchPerson `json:"item"`
	} `json:"items"`
}

// PersonInput is the request body for person writes. Custom fields ride at
// the top level keyed by their opaque field keys, so the body is inherently
// open-keyed.
type PersonInput map[string]any

// OrganizationInput is the request body for organization writes.
type OrganizationInput map[string]any
