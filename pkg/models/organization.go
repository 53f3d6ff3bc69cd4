package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a company record in the local CRM store.
// NormalizedDomain is the lower-cased website domain with any "www." prefix
// stripped; it is the fuzzy-match key for organizations without a Pipedrive id.
type Organization struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	WebsiteURL        string     `json:"website_url"`
	NormalizedDomain  string     `json:"normalized_domain"`
	PipedriveOrgID    *int64     `json:"pipedrive_org_id"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastPipedriveSync *time.Time `json:"last_pipedrive_sync"`
}
