package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"unit_scanner/config"
	"unit_scanner/httputil"
	"unit_scanner/models"
	"unit_scanner/storage"
)

// Store is the slice of persistent storage the scan pipeline needs.
// *storage.PostgresStore satisfies it.
type Store interface {
	GetScannableProperties(ctx context.Context) ([]models.Property, error)
	GetPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	UpdatePropertyScanInfo(ctx context.Context, id uuid.UUID, source string, scannedAt time.Time) error
	GetFloorPlans(ctx context.Context, propertyID uuid.UUID) ([]models.FloorPlan, error)
	UpsertUnit(ctx context.Context, u *models.Unit) error
	InsertScanHistory(ctx context.Context, e *models.ScanHistoryEntry) error
	GetScanHistory(ctx context.Context) ([]models.ScanHistoryEntry, error)
}

// Orchestrator composes the scan pipeline. Execution is pull-based and
// request-scoped: one call performs at most one scan end-to-end and returns.
// Advancing the overall scan is the caller's job (HTTP, CLI, or cron loop).
type Orchestrator struct {
	cfg     *config.Config
	store   Store
	search  *SearchResolver
	render  *RenderEngine
	extract *Extractor
	methods []models.ScanMethod
}

func NewOrchestrator(cfg *config.Config, store Store, cache *storage.SQLiteStore, clients *httputil.Clients) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		store:   store,
		search:  NewSearchResolver(cfg.Search, clients.Search),
		render:  NewRenderEngine(cfg.Render, cfg.Scanner, clients.Render, cache),
		extract: NewExtractor(cfg.Oracle, cfg.Scanner, clients.Oracle),
		methods: Methods(),
	}
}

type OverviewStats struct {
	TotalProperties   int     `json:"totalProperties"`
	ScannedProperties int     `json:"scannedProperties"`
	TotalScans        int     `json:"totalScans"`
	SuccessfulScans   int     `json:"successfulScans"`
	TotalUnitsFound   int     `json:"totalUnitsFound"`
	SuccessRate       float64 `json:"successRate"`
}

type NextScan struct {
	PropertyID   uuid.UUID         `json:"propertyId"`
	PropertyName string            `json:"propertyName"`
	LeasingURL   string            `json:"leasingUrl"`
	Method       models.ScanMethod `json:"method"`
}

type StatusReport struct {
	Stats       OverviewStats        `json:"stats"`
	MethodStats []models.MethodStats `json:"methodStats"`
	Next        *NextScan            `json:"next"`
}

type ScanResult struct {
	Success      bool            `json:"success"`
	PropertyID   uuid.UUID       `json:"propertyId"`
	PropertyName string          `json:"propertyName"`
	Method       string          `json:"method"`
	UnitsFound   int             `json:"unitsFound"`
	Sources      []string        `json:"sources"`
	Debug        json.RawMessage `json:"debug"`
}

// Status loads properties and the full history fresh, recomputes method
// statistics, and recommends the next (property, method) pair.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	props, err := o.store.GetScannableProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("load properties: %w", err)
	}

	history, err := o.store.GetScanHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	report := &StatusReport{
		Stats:       overview(props, history),
		MethodStats: ComputeMethodStats(o.methods, history, o.cfg.Scanner),
	}

	if target := NextTarget(props, o.methods, history, o.cfg.Scanner, time.Now()); target != nil {
		report.Next = &NextScan{
			PropertyID:   target.Property.ID,
			PropertyName: target.Property.Name,
			LeasingURL:   target.Property.LeasingURL,
			Method:       target.Method,
		}
	}

	return report, nil
}

func overview(props []models.Property, history []models.ScanHistoryEntry) OverviewStats {
	stats := OverviewStats{
		TotalProperties: len(props),
		TotalScans:      len(history),
	}

	scanned := make(map[uuid.UUID]bool)
	for _, e := range history {
		scanned[e.PropertyID] = true
		if e.Success {
			stats.SuccessfulScans++
		}
		stats.TotalUnitsFound += e.UnitsFound
	}

	for _, p := range props {
		if scanned[p.ID] {
			stats.ScannedProperties++
		}
	}

	if stats.TotalScans > 0 {
		stats.SuccessRate = float64(stats.SuccessfulScans) / float64(stats.TotalScans)
	}

	return stats
}

// ExecuteNext runs one scan against the current recommendation. Returns
// (nil, nil) when there is nothing to scan.
func (o *Orchestrator) ExecuteNext(ctx context.Context) (*ScanResult, error) {
	props, err := o.store.GetScannableProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("load properties: %w", err)
	}
	history, err := o.store.GetScanHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	target := NextTarget(props, o.methods, history, o.cfg.Scanner, time.Now())
	if target == nil {
		return nil, nil
	}

	return o.Execute(ctx, target.Property.ID, target.Method.ID)
}

// Execute runs exactly one scan of one (property, method) pair and writes
// exactly one history entry recording the attempt, success or failure.
// Missing credentials fail the invocation up front, before any attempt.
func (o *Orchestrator) Execute(ctx context.Context, propertyID uuid.UUID, methodID string) (*ScanResult, error) {
	method := MethodByID(methodID)
	if method == nil {
		return nil, fmt.Errorf("unknown scan method: %s", methodID)
	}

	if err := o.checkCredentials(*method); err != nil {
		return nil, err
	}

	prop, err := o.store.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("load property: %w", err)
	}
	if prop == nil {
		return nil, fmt.Errorf("property not found: %s", propertyID)
	}

	log.Printf("Scan: %s via %s", prop.Name, method.Label)

	debug := map[string]interface{}{"method": method.ID}

	targetURL, failReason := o.resolveTarget(ctx, *method, *prop, debug)
	if failReason != "" {
		return o.finish(ctx, *prop, *method, 0, failReason, nil, debug)
	}
	debug["target_url"] = targetURL

	rendered := o.render.Render(ctx, targetURL)
	debug["render_tier"] = rendered.Tier
	if !rendered.OK() {
		return o.finish(ctx, *prop, *method, 0, "render failed: "+rendered.Error, nil, debug)
	}

	source := hostOf(rendered.FinalURL)
	if source == "" {
		source = hostOf(targetURL)
	}

	extraction := o.extract.Extract(ctx, rendered.HTML, prop.Name)
	if extraction.Error != "" {
		debug["extract_error"] = extraction.Error
	}
	if extraction.Reason != "" {
		debug["extract_reason"] = extraction.Reason
	}

	plans, err := o.store.GetFloorPlans(ctx, prop.ID)
	if err != nil {
		log.Printf("Warning: load floor plans: %v", err)
		debug["floor_plan_error"] = err.Error()
	}

	now := time.Now()
	units := Reconcile(prop.ID, plans, extraction.Units, source, now)

	var persistErrs []string
	for i := range units {
		if err := o.store.UpsertUnit(ctx, &units[i]); err != nil {
			log.Printf("Warning: upsert unit %s: %v", units[i].UnitNumber, err)
			persistErrs = append(persistErrs, fmt.Sprintf("%s: %v", units[i].UnitNumber, err))
		}
	}
	if len(persistErrs) > 0 {
		debug["persist_errors"] = persistErrs
	}

	unitsFound := len(units)
	errText := ""
	if unitsFound == 0 {
		errText = extraction.Error
		if errText == "" {
			errText = "no units extracted"
		}
	}

	if unitsFound > 0 {
		if err := o.store.UpdatePropertyScanInfo(ctx, prop.ID, source, now); err != nil {
			log.Printf("Warning: update property scan info: %v", err)
			debug["property_update_error"] = err.Error()
		}
	}

	return o.finish(ctx, *prop, *method, unitsFound, errText, []string{source}, debug)
}

// resolveTarget returns the URL to render, or a failure reason for the
// history entry. Aggregator scans get a small randomized delay to reduce
// rate-limiting and detection risk.
func (o *Orchestrator) resolveTarget(ctx context.Context, method models.ScanMethod, prop models.Property, debug map[string]interface{}) (string, string) {
	if method.Kind == models.MethodKindPropertySite {
		return strings.TrimRight(prop.LeasingURL, "/") + method.Path, ""
	}

	delayMS := o.cfg.Scanner.AggregatorDelayMinMS
	if spread := o.cfg.Scanner.AggregatorDelayMaxMS - o.cfg.Scanner.AggregatorDelayMinMS; spread > 0 {
		delayMS += rand.Intn(spread)
	}
	time.Sleep(time.Duration(delayMS) * time.Millisecond)

	listingURL, err := o.search.ResolveListing(ctx, method, prop)
	if err != nil {
		return "", fmt.Sprintf("search failed: %v", err)
	}
	if listingURL == "" {
		debug["search_miss"] = method.Domain
		return "", fmt.Sprintf("no listing found on %s", method.Domain)
	}
	return listingURL, ""
}

// finish writes the single history entry for this attempt and shapes the
// response. A failed history write is surfaced in the debug payload but does
// not roll back anything that already happened.
func (o *Orchestrator) finish(ctx context.Context, prop models.Property, method models.ScanMethod, unitsFound int, errText string, sources []string, debug map[string]interface{}) (*ScanResult, error) {
	success := unitsFound > 0

	debugJSON, err := json.Marshal(debug)
	if err != nil {
		debugJSON = []byte("{}")
	}

	entry := &models.ScanHistoryEntry{
		PropertyID: prop.ID,
		MethodID:   method.ID,
		Success:    success,
		UnitsFound: unitsFound,
		Error:      errText,
		Debug:      debugJSON,
		ScannedAt:  time.Now(),
	}
	if err := o.store.InsertScanHistory(ctx, entry); err != nil {
		log.Printf("Warning: failed to record scan history: %v", err)
		debug["history_error"] = err.Error()
		debugJSON, _ = json.Marshal(debug)
	}

	if success {
		log.Printf("Scan: %s via %s found %d units", prop.Name, method.Label, unitsFound)
	} else {
		log.Printf("Scan: %s via %s failed: %s", prop.Name, method.Label, errText)
	}

	return &ScanResult{
		Success:      success,
		PropertyID:   prop.ID,
		PropertyName: prop.Name,
		Method:       method.ID,
		UnitsFound:   unitsFound,
		Sources:      sources,
		Debug:        debugJSON,
	}, nil
}

// checkCredentials enforces the configuration-error taxonomy: a missing
// vendor credential fails the whole invocation before any scan attempt.
func (o *Orchestrator) checkCredentials(method models.ScanMethod) error {
	if o.cfg.Render.Token == "" {
		return fmt.Errorf("RENDER_TOKEN not set")
	}
	if o.cfg.Oracle.APIKey == "" {
		return fmt.Errorf("EXTRACT_API_KEY not set")
	}
	if method.Kind == models.MethodKindAggregator && o.cfg.Search.APIKey == "" {
		return fmt.Errorf("SEARCH_API_KEY not set")
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
