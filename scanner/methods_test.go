package scanner

import (
	"strings"
	"testing"

	"unit_scanner/models"
)

func TestMethodCatalog(t *testing.T) {
	methods := Methods()

	if len(methods) != 7 {
		t.Fatalf("expected 7 methods, got %d", len(methods))
	}

	seen := make(map[string]bool)
	siteCount, aggCount := 0, 0
	for _, m := range methods {
		if seen[m.ID] {
			t.Errorf("duplicate method id %s", m.ID)
		}
		seen[m.ID] = true

		switch m.Kind {
		case models.MethodKindPropertySite:
			siteCount++
			if m.Domain != "" || m.QueryTemplate != "" {
				t.Errorf("%s: property-site methods carry no search config", m.ID)
			}
		case models.MethodKindAggregator:
			aggCount++
			if m.Domain == "" {
				t.Errorf("%s: aggregator missing domain", m.ID)
			}
			if !strings.Contains(m.QueryTemplate, "site:"+m.Domain) {
				t.Errorf("%s: query template not scoped to %s", m.ID, m.Domain)
			}
			if strings.Count(m.QueryTemplate, "%s") != 3 {
				t.Errorf("%s: query template wants name, city, state", m.ID)
			}
		default:
			t.Errorf("%s: unknown kind %q", m.ID, m.Kind)
		}
	}

	if siteCount != 4 || aggCount != 3 {
		t.Fatalf("expected 4 site + 3 aggregator methods, got %d + %d", siteCount, aggCount)
	}
}

func TestMethodByID(t *testing.T) {
	if m := MethodByID("site-root"); m == nil || m.Path != "" {
		t.Fatalf("site-root should target the leasing URL as-is")
	}
	if m := MethodByID("does-not-exist"); m != nil {
		t.Fatalf("expected nil for unknown id")
	}
}
