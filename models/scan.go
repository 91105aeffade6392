package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MethodKind string

const (
	MethodKindPropertySite MethodKind = "property-site"
	MethodKindAggregator   MethodKind = "external-aggregator"
)

// ScanMethod is one entry of the fixed scan-method catalog. The catalog is
// built in code at startup and never mutated for the process lifetime.
type ScanMethod struct {
	ID            string     `json:"id"`
	Kind          MethodKind `json:"kind"`
	Path          string     `json:"path,omitempty"`           // property-site: suffix appended to leasing_url
	Domain        string     `json:"domain,omitempty"`         // aggregator: domain root to match in search results
	QueryTemplate string     `json:"query_template,omitempty"` // aggregator: fmt template (name, city, state)
	Label         string     `json:"label"`
}

// ScanHistoryEntry is an append-only record of one scan attempt. Exactly one
// entry is written per attempt, success or failure; it is the sole source of
// truth for method statistics.
type ScanHistoryEntry struct {
	ID         int64           `json:"id" db:"id"`
	PropertyID uuid.UUID       `json:"property_id" db:"property_id"`
	MethodID   string          `json:"method_id" db:"method_id"`
	Success    bool            `json:"success" db:"success"`
	UnitsFound int             `json:"units_found" db:"units_found"`
	Error      string          `json:"error" db:"error"`
	Debug      json.RawMessage `json:"debug" db:"debug"`
	ScannedAt  time.Time       `json:"scanned_at" db:"scanned_at"`
}

type MethodStatus string

const (
	MethodStatusLearning    MethodStatus = "learning"
	MethodStatusLowPriority MethodStatus = "low-priority"
	MethodStatusActive      MethodStatus = "active"
)

// MethodStats is derived fresh from the full history on every read, never
// cached or incrementally updated.
type MethodStats struct {
	MethodID           string       `json:"methodId"`
	Label              string       `json:"label"`
	Kind               MethodKind   `json:"kind"`
	Attempts           int          `json:"attempts"`
	Successes          int          `json:"successes"`
	TotalUnitsFound    int          `json:"totalUnitsFound"`
	SuccessRate        float64      `json:"successRate"`
	AvgUnitsPerSuccess float64      `json:"avgUnitsPerSuccess"`
	Status             MethodStatus `json:"status"`
	LastUsedAt         *time.Time   `json:"lastUsedAt"`
}

// CandidateUnit is a unit as claimed by the extraction oracle. It exists only
// within one scan's scope until reconciled against known floor plans.
type CandidateUnit struct {
	UnitNumber    string   `json:"unit_number"`
	Beds          int      `json:"beds"`
	Baths         float64  `json:"baths"`
	SqFt          *int     `json:"sqft"`
	Rent          *float64 `json:"rent"`
	AvailableFrom *string  `json:"available_from"` // YYYY-MM-DD, null means "now"
	FloorPlanName string   `json:"floor_plan_name"`
}
