package models

import (
	"time"

	"github.com/google/uuid"
)

// Person is a contact record in the local CRM store.
// PipedriveID is the foreign system's numeric identifier; it is nil until the
// record has been linked to a Pipedrive person, and unique across people once set.
type Person struct {
	ID                   uuid.UUID  `json:"id"`
	FullName             string     `json:"full_name"`
	WorkEmail            string     `json:"work_email"`
	PersonalEmail        string     `json:"personal_email"`
	Phone                string     `json:"phone"`
	OrganizationID       *uuid.UUID `json:"organization_id"`
	LinkedinProfile      string     `json:"linkedin_profile"`
	Title                string     `json:"title"`
	Notes                string     `json:"notes"`
	PrimaryContactType   string     `json:"primary_contact_type"`
	SecondaryContactType string     `json:"secondary_contact_type"`
	NumFollowers         *int       `json:"num_followers"`
	Headline             string     `json:"headline"`
	Summary              string     `json:"summary"`
	LocationName         string     `json:"location_name"`
	PipedriveID          *int64     `json:"pipedrive_id"`
	UpdatedAt            time.Time  `json:"updated_at"`
	LastPipedriveSync    *time.Time `json:"last_pipedrive_sync"`
}
