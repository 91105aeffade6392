package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is a managed rental property tracked by the CRM.
// last_successful_source and last_scan_at are denormalized fields the
// scanner writes back after a successful scan.
type Property struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	City                 string     `json:"city" db:"city"`
	State                string     `json:"state" db:"state"`
	LeasingURL           string     `json:"leasing_url" db:"leasing_url"`
	LastSuccessfulSource string     `json:"last_successful_source" db:"last_successful_source"`
	LastScanAt           *time.Time `json:"last_scan_at" db:"last_scan_at"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// FloorPlan is a known floor plan for a property. Read-only from the
// scanner's perspective.
type FloorPlan struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PropertyID uuid.UUID `json:"property_id" db:"property_id"`
	Name       string    `json:"name" db:"name"`
	Beds       int       `json:"beds" db:"beds"`
	Baths      float64   `json:"baths" db:"baths"`
}

// Unit is a reconciled rental unit. Persisted with an upsert keyed by
// (property_id, unit_number) so repeated scans overwrite, never duplicate.
type Unit struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	PropertyID     uuid.UUID  `json:"property_id" db:"property_id"`
	FloorPlanID    *uuid.UUID `json:"floor_plan_id" db:"floor_plan_id"`
	UnitNumber     string     `json:"unit_number" db:"unit_number"`
	Beds           int        `json:"beds" db:"beds"`
	Baths          float64    `json:"baths" db:"baths"`
	SqFt           *int       `json:"sqft" db:"sqft"`
	Rent           *float64   `json:"rent" db:"rent"`
	AvailableFrom  *time.Time `json:"available_from" db:"available_from"`
	FloorPlanLabel string     `json:"floor_plan_label" db:"floor_plan_label"`
	Status         string     `json:"status" db:"status"`
	IsAvailable    bool       `json:"is_available" db:"is_available"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	Source         string     `json:"source" db:"source"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

const UnitStatusAvailable = "available"
