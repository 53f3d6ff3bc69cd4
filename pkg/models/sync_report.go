package models

import "time"

// EntityCounts summarizes reconciliation outcomes for one entity type.
type EntityCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// SyncReport is the orchestrator's only user-visible contract: per-entity-type
// outcome counts for a single sync run.
type SyncReport struct {
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Organizations EntityCounts `json:"organizations"`
	People        EntityCounts `json:"people"`
}
