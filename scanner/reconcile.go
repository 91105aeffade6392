package scanner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"unit_scanner/models"
)

// Reconcile matches candidate units against known floor plans, deduplicates
// within the run, and produces upsert-ready unit records. The scanner only
// ever asserts positive availability: absence from a scan is not evidence a
// unit went away.
func Reconcile(propertyID uuid.UUID, plans []models.FloorPlan, candidates []models.CandidateUnit, source string, now time.Time) []models.Unit {
	seen := make(map[string]bool)
	var units []models.Unit

	for _, c := range candidates {
		if c.UnitNumber == "" {
			continue
		}

		// First occurrence wins; redundant sources repeat units.
		key := fmt.Sprintf("%s|%d", strings.ToLower(c.UnitNumber), c.Beds)
		if seen[key] {
			continue
		}
		seen[key] = true

		planID, label := matchFloorPlan(plans, c)

		units = append(units, models.Unit{
			ID:             uuid.New(),
			PropertyID:     propertyID,
			FloorPlanID:    planID,
			UnitNumber:     c.UnitNumber,
			Beds:           c.Beds,
			Baths:          c.Baths,
			SqFt:           c.SqFt,
			Rent:           c.Rent,
			AvailableFrom:  parseAvailableFrom(c.AvailableFrom),
			FloorPlanLabel: label,
			Status:         models.UnitStatusAvailable,
			IsAvailable:    true,
			IsActive:       true,
			Source:         source,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	return units
}

// matchFloorPlan resolves a candidate to a known floor plan: exact name match
// first, then beds+baths, then beds only. No match leaves the reference nil
// with a synthetic display label.
func matchFloorPlan(plans []models.FloorPlan, c models.CandidateUnit) (*uuid.UUID, string) {
	if c.FloorPlanName != "" {
		for _, p := range plans {
			if strings.EqualFold(p.Name, c.FloorPlanName) {
				id := p.ID
				return &id, p.Name
			}
		}
	}

	for _, p := range plans {
		if p.Beds == c.Beds && p.Baths == c.Baths {
			id := p.ID
			return &id, p.Name
		}
	}

	for _, p := range plans {
		if p.Beds == c.Beds {
			id := p.ID
			return &id, p.Name
		}
	}

	return nil, fmt.Sprintf("%dBR", c.Beds)
}

// parseAvailableFrom accepts YYYY-MM-DD; null or garbage means "now", stored
// as no date.
func parseAvailableFrom(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}
