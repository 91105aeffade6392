package scanner

import "unit_scanner/models"

// Methods is the fixed scan-method catalog: four property-site path variants
// and three external aggregators. Built once at startup and never mutated;
// moving custom methods into the store is future work, not a runtime feature.
func Methods() []models.ScanMethod {
	return []models.ScanMethod{
		{
			ID:    "site-floorplans",
			Kind:  models.MethodKindPropertySite,
			Path:  "/floorplans",
			Label: "Property site /floorplans",
		},
		{
			ID:    "site-floor-plans",
			Kind:  models.MethodKindPropertySite,
			Path:  "/floor-plans",
			Label: "Property site /floor-plans",
		},
		{
			ID:    "site-availability",
			Kind:  models.MethodKindPropertySite,
			Path:  "/availability",
			Label: "Property site /availability",
		},
		{
			ID:    "site-root",
			Kind:  models.MethodKindPropertySite,
			Path:  "",
			Label: "Property site front page",
		},
		{
			ID:            "apartments-com",
			Kind:          models.MethodKindAggregator,
			Domain:        "apartments.com",
			QueryTemplate: `site:apartments.com "%s" %s %s`,
			Label:         "Apartments.com listing",
		},
		{
			ID:            "zillow-com",
			Kind:          models.MethodKindAggregator,
			Domain:        "zillow.com",
			QueryTemplate: `site:zillow.com "%s" %s %s`,
			Label:         "Zillow listing",
		},
		{
			ID:            "rent-com",
			Kind:          models.MethodKindAggregator,
			Domain:        "rent.com",
			QueryTemplate: `site:rent.com "%s" %s %s`,
			Label:         "Rent.com listing",
		},
	}
}

func MethodByID(id string) *models.ScanMethod {
	for _, m := range Methods() {
		if m.ID == id {
			return &m
		}
	}
	return nil
}
