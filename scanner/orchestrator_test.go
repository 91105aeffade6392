package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"unit_scanner/config"
	"unit_scanner/models"
)

type fakeStore struct {
	props   []models.Property
	plans   []models.FloorPlan
	history []models.ScanHistoryEntry
	units   map[string]models.Unit

	scanInfoUpdates int
	lastSource      string
}

func newFakeStore(props ...models.Property) *fakeStore {
	return &fakeStore{props: props, units: make(map[string]models.Unit)}
}

func (f *fakeStore) GetScannableProperties(ctx context.Context) ([]models.Property, error) {
	return f.props, nil
}

func (f *fakeStore) GetPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	for i := range f.props {
		if f.props[i].ID == id {
			return &f.props[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdatePropertyScanInfo(ctx context.Context, id uuid.UUID, source string, scannedAt time.Time) error {
	f.scanInfoUpdates++
	f.lastSource = source
	return nil
}

func (f *fakeStore) GetFloorPlans(ctx context.Context, propertyID uuid.UUID) ([]models.FloorPlan, error) {
	return f.plans, nil
}

func (f *fakeStore) UpsertUnit(ctx context.Context, u *models.Unit) error {
	f.units[u.PropertyID.String()+"|"+u.UnitNumber] = *u
	return nil
}

func (f *fakeStore) InsertScanHistory(ctx context.Context, e *models.ScanHistoryEntry) error {
	e.ID = int64(len(f.history) + 1)
	f.history = append(f.history, *e)
	return nil
}

func (f *fakeStore) GetScanHistory(ctx context.Context) ([]models.ScanHistoryEntry, error) {
	return f.history, nil
}

func oracleWith(reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: reply}},
			},
		})
	}))
}

func testOrchestrator(st Store, oracleURL, searchURL string, unblock, content tierFunc) *Orchestrator {
	scan := config.DefaultScannerConfig()
	scan.AggregatorDelayMinMS = 0
	scan.AggregatorDelayMaxMS = 0

	cfg := &config.Config{
		Search:  config.SearchConfig{APIKey: "test-key", BaseURL: searchURL},
		Render:  config.RenderConfig{Token: "test-token"},
		Oracle:  config.OracleConfig{APIKey: "test-key", BaseURL: oracleURL, Model: "gpt-4o-mini"},
		Scanner: scan,
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return &Orchestrator{
		cfg:     cfg,
		store:   st,
		search:  NewSearchResolver(cfg.Search, client),
		render:  testEngine(unblock, content),
		extract: NewExtractor(cfg.Oracle, scan, client),
		methods: Methods(),
	}
}

func renderedPage(finalURL string) tierFunc {
	html := "<body>" + strings.Repeat("Unit 204 available now. ", 100) + "</body>"
	return func(ctx context.Context, url string) RenderResult {
		return RenderResult{HTML: html, FinalURL: finalURL, Tier: TierUnblock}
	}
}

func failedRender(reason string) tierFunc {
	return func(ctx context.Context, url string) RenderResult {
		return RenderResult{Error: reason}
	}
}

func TestExecute_SuccessWritesOneHistoryRow(t *testing.T) {
	prop := models.Property{ID: uuid.New(), Name: "The Birches", City: "Austin", State: "TX", LeasingURL: "https://thebirches.example.com"}
	st := newFakeStore(prop)

	oracle := oracleWith(`{"units": [{"unit_number": "204", "beds": 1, "baths": 1}, {"unit_number": "318", "beds": 1, "baths": 1}], "found_any_unit_data": true}`)
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, "",
		renderedPage("https://www.thebirches.example.com/floorplans"), failedRender("unused"))

	result, err := o.Execute(context.Background(), prop.ID, "site-floorplans")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(st.history) != 1 {
		t.Fatalf("expected exactly 1 history entry, got %d", len(st.history))
	}
	entry := st.history[0]
	if !entry.Success || entry.UnitsFound != 2 || entry.MethodID != "site-floorplans" {
		t.Fatalf("unexpected history entry %+v", entry)
	}

	if !result.Success || result.UnitsFound != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(st.units) != 2 {
		t.Fatalf("expected 2 upserted units, got %d", len(st.units))
	}
	if st.scanInfoUpdates != 1 || st.lastSource != "thebirches.example.com" {
		t.Fatalf("expected scan info update with source, got %d / %q", st.scanInfoUpdates, st.lastSource)
	}
}

func TestExecute_RenderFailureStillRecords(t *testing.T) {
	prop := models.Property{ID: uuid.New(), Name: "Oak Row", LeasingURL: "https://oakrow.example.com"}
	st := newFakeStore(prop)

	oracle := oracleWith("unused")
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, "",
		failedRender("connect render service: refused"), failedRender("content render failed 502"))

	result, err := o.Execute(context.Background(), prop.ID, "site-availability")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(st.history) != 1 {
		t.Fatalf("expected exactly 1 history entry, got %d", len(st.history))
	}
	entry := st.history[0]
	if entry.Success || entry.UnitsFound != 0 {
		t.Fatalf("expected failed entry, got %+v", entry)
	}
	if !strings.Contains(entry.Error, "render failed") {
		t.Fatalf("expected render failure reason, got %q", entry.Error)
	}
	if result.Success || len(st.units) != 0 || st.scanInfoUpdates != 0 {
		t.Fatalf("render failure must not persist anything")
	}
}

func TestExecute_SearchMissStillRecords(t *testing.T) {
	prop := models.Property{ID: uuid.New(), Name: "Oak Row", City: "Denver", State: "CO", LeasingURL: "https://oakrow.example.com"}
	st := newFakeStore(prop)

	search := searchServer(t, "", nil)
	defer search.Close()
	oracle := oracleWith("unused")
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, search.URL,
		failedRender("unused"), failedRender("unused"))

	result, err := o.Execute(context.Background(), prop.ID, "apartments-com")
	if err != nil {
		t.Fatalf("a search miss is not an invocation error, got %v", err)
	}

	if len(st.history) != 1 {
		t.Fatalf("expected exactly 1 history entry, got %d", len(st.history))
	}
	entry := st.history[0]
	if entry.Success || !strings.Contains(entry.Error, "no listing found on apartments.com") {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if result.Success {
		t.Fatalf("expected failed result")
	}
}

func TestExecute_ExtractionEmptyStillRecords(t *testing.T) {
	prop := models.Property{ID: uuid.New(), Name: "The Birches", LeasingURL: "https://thebirches.example.com"}
	st := newFakeStore(prop)

	oracle := oracleWith("I couldn't find any units on this page.")
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, "",
		renderedPage("https://thebirches.example.com/floorplans"), failedRender("unused"))

	result, err := o.Execute(context.Background(), prop.ID, "site-floorplans")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(st.history) != 1 {
		t.Fatalf("expected exactly 1 history entry, got %d", len(st.history))
	}
	entry := st.history[0]
	if entry.Success || entry.UnitsFound != 0 {
		t.Fatalf("expected zero-unit failure, got %+v", entry)
	}
	if entry.Error != "No JSON in response" {
		t.Fatalf("unexpected error %q", entry.Error)
	}
	if result.UnitsFound != 0 || st.scanInfoUpdates != 0 {
		t.Fatalf("empty extraction must not update the property")
	}
}

func TestExecute_MissingCredentialWritesNothing(t *testing.T) {
	prop := models.Property{ID: uuid.New(), Name: "The Birches", LeasingURL: "https://thebirches.example.com"}
	st := newFakeStore(prop)

	oracle := oracleWith("unused")
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, "",
		renderedPage("https://thebirches.example.com"), failedRender("unused"))
	o.cfg.Render.Token = ""

	if _, err := o.Execute(context.Background(), prop.ID, "site-floorplans"); err == nil {
		t.Fatalf("expected a configuration error")
	}
	if len(st.history) != 0 {
		t.Fatalf("configuration errors must fail before any attempt, got %d entries", len(st.history))
	}
}

func TestExecute_UnknownPropertyWritesNothing(t *testing.T) {
	st := newFakeStore()

	oracle := oracleWith("unused")
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, "",
		renderedPage("https://example.com"), failedRender("unused"))

	if _, err := o.Execute(context.Background(), uuid.New(), "site-root"); err == nil {
		t.Fatalf("expected an error for an unknown property")
	}
	if len(st.history) != 0 {
		t.Fatalf("expected no history for an unknown property")
	}
}

func TestExecute_RepeatScanUpsertsNotAppends(t *testing.T) {
	prop := models.Property{ID: uuid.New(), Name: "The Birches", LeasingURL: "https://thebirches.example.com"}
	st := newFakeStore(prop)

	oracle := oracleWith(`{"units": [{"unit_number": "204", "beds": 1, "baths": 1}, {"unit_number": "318", "beds": 1, "baths": 1}], "found_any_unit_data": true}`)
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, "",
		renderedPage("https://thebirches.example.com/floorplans"), failedRender("unused"))

	for i := 0; i < 2; i++ {
		if _, err := o.Execute(context.Background(), prop.ID, "site-floorplans"); err != nil {
			t.Fatalf("Execute %d failed: %v", i+1, err)
		}
	}

	if len(st.units) != 2 {
		t.Fatalf("repeat scan must overwrite, not duplicate: got %d unit records", len(st.units))
	}
	if len(st.history) != 2 {
		t.Fatalf("history grows by exactly one per attempt: got %d entries", len(st.history))
	}
}

func TestStatus_ComputesFromStore(t *testing.T) {
	prop := models.Property{ID: uuid.New(), Name: "The Birches", LeasingURL: "https://thebirches.example.com"}
	st := newFakeStore(prop)
	st.history = []models.ScanHistoryEntry{
		{PropertyID: prop.ID, MethodID: "site-floorplans", Success: true, UnitsFound: 3, ScannedAt: time.Now()},
		{PropertyID: prop.ID, MethodID: "site-root", Success: false, ScannedAt: time.Now()},
	}

	oracle := oracleWith("unused")
	defer oracle.Close()

	o := testOrchestrator(st, oracle.URL, "",
		failedRender("unused"), failedRender("unused"))

	report, err := o.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	if report.Stats.TotalScans != 2 || report.Stats.SuccessfulScans != 1 || report.Stats.TotalUnitsFound != 3 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}
	if report.Stats.ScannedProperties != 1 || report.Stats.SuccessRate != 0.5 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}
	if len(report.MethodStats) != len(Methods()) {
		t.Fatalf("expected all methods in report, got %d", len(report.MethodStats))
	}
	if report.Next == nil || report.Next.PropertyID != prop.ID {
		t.Fatalf("expected a next recommendation for the only property")
	}
}
