package scanner

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"unit_scanner/config"
	"unit_scanner/models"
)

// Target is the next (property, method) pair the planner recommends.
type Target struct {
	Property models.Property
	Method   models.ScanMethod
	Score    int
}

// RankMethods orders the catalog for exploration-vs-exploitation: methods
// never attempted sort first (information gain), then proven performers by
// success rate, ties broken toward under-sampled methods.
func RankMethods(methods []models.ScanMethod, history []models.ScanHistoryEntry) []models.ScanMethod {
	attempts := make(map[string]int)
	successes := make(map[string]int)
	for _, e := range history {
		attempts[e.MethodID]++
		if e.Success {
			successes[e.MethodID]++
		}
	}

	rate := func(id string) float64 {
		if attempts[id] == 0 {
			return 0
		}
		return float64(successes[id]) / float64(attempts[id])
	}

	ranked := make([]models.ScanMethod, len(methods))
	copy(ranked, methods)

	sort.SliceStable(ranked, func(i, j int) bool {
		ai, aj := attempts[ranked[i].ID], attempts[ranked[j].ID]
		if (ai == 0) != (aj == 0) {
			return ai == 0
		}
		ri, rj := rate(ranked[i].ID), rate(ranked[j].ID)
		if ri != rj {
			return ri > rj
		}
		return ai < aj
	})

	return ranked
}

// propertyScan aggregates one property's slice of the history.
type propertyScan struct {
	tried        map[string]bool
	lastByMethod map[string]time.Time
	lastScan     time.Time
	anySuccess   bool
	totalUnits   int
}

func foldPropertyHistory(propertyID uuid.UUID, history []models.ScanHistoryEntry) propertyScan {
	ps := propertyScan{
		tried:        make(map[string]bool),
		lastByMethod: make(map[string]time.Time),
	}
	for _, e := range history {
		if e.PropertyID != propertyID {
			continue
		}
		ps.tried[e.MethodID] = true
		if e.ScannedAt.After(ps.lastByMethod[e.MethodID]) {
			ps.lastByMethod[e.MethodID] = e.ScannedAt
		}
		if e.ScannedAt.After(ps.lastScan) {
			ps.lastScan = e.ScannedAt
		}
		if e.Success {
			ps.anySuccess = true
		}
		ps.totalUnits += e.UnitsFound
	}
	return ps
}

// NextTarget picks the single next (property, method) pair. Lower score scans
// sooner; ties go to catalog order. Fully explored properties are heavily
// deprioritized but never excluded: once every method has been tried the
// least-recently-used one is due again.
func NextTarget(props []models.Property, methods []models.ScanMethod, history []models.ScanHistoryEntry, scan config.ScannerConfig, now time.Time) *Target {
	if len(props) == 0 || len(methods) == 0 {
		return nil
	}

	best := -1
	bestScore := 0
	var bestPS propertyScan

	for i, p := range props {
		ps := foldPropertyHistory(p.ID, history)

		score := 0
		if len(ps.tried) >= len(methods) {
			score += 5000
		}
		// A property never scanned at all counts as maximally stale.
		if ps.lastScan.IsZero() || now.Sub(ps.lastScan) > scan.StaleAfter {
			score -= 100
		}
		if ps.anySuccess {
			score += 1000
		}
		score += 50 * ps.totalUnits
		score += 100 * len(ps.tried)

		if best < 0 || score < bestScore {
			best = i
			bestScore = score
			bestPS = ps
		}
	}

	prop := props[best]
	ranked := RankMethods(methods, history)

	// First untried method in ranked order.
	for _, m := range ranked {
		if !bestPS.tried[m.ID] {
			return &Target{Property: prop, Method: m, Score: bestScore}
		}
	}

	// All tried: retry the least recently used so nothing starves.
	lru := methods[0]
	lruAt := bestPS.lastByMethod[lru.ID]
	for _, m := range methods[1:] {
		if at := bestPS.lastByMethod[m.ID]; at.Before(lruAt) {
			lru = m
			lruAt = at
		}
	}
	return &Target{Property: prop, Method: lru, Score: bestScore}
}
