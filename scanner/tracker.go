package scanner

import (
	"unit_scanner/config"
	"unit_scanner/models"
)

// ComputeMethodStats folds the full scan history into per-method statistics.
// It is a pure function recomputed on every read: with an append-only log
// there is no counter state to drift out of sync. No method is ever removed
// from the catalog; low-priority is a sort demotion, not an exclusion, since
// sample noise at low volumes makes permanent disablement unsafe.
func ComputeMethodStats(methods []models.ScanMethod, history []models.ScanHistoryEntry, scan config.ScannerConfig) []models.MethodStats {
	stats := make([]models.MethodStats, 0, len(methods))

	for _, m := range methods {
		s := models.MethodStats{
			MethodID: m.ID,
			Label:    m.Label,
			Kind:     m.Kind,
		}

		for _, e := range history {
			if e.MethodID != m.ID {
				continue
			}
			s.Attempts++
			if e.Success {
				s.Successes++
			}
			s.TotalUnitsFound += e.UnitsFound
			if s.LastUsedAt == nil || e.ScannedAt.After(*s.LastUsedAt) {
				t := e.ScannedAt
				s.LastUsedAt = &t
			}
		}

		if s.Attempts > 0 {
			s.SuccessRate = float64(s.Successes) / float64(s.Attempts)
		}
		if s.Successes > 0 {
			s.AvgUnitsPerSuccess = float64(s.TotalUnitsFound) / float64(s.Successes)
		}

		switch {
		case s.Attempts < scan.MinSampleSize:
			s.Status = models.MethodStatusLearning
		case s.SuccessRate < scan.LowPriorityRate:
			s.Status = models.MethodStatusLowPriority
		default:
			s.Status = models.MethodStatusActive
		}

		stats = append(stats, s)
	}

	return stats
}
