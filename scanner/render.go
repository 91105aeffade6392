package scanner

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/playwright-community/playwright-go"
	"unit_scanner/config"
	"unit_scanner/models"
	"unit_scanner/storage"
)

const (
	TierUnblock = "unblock"
	TierContent = "content"
	TierCache   = "cache"

	maxClicksPerSelector = 8
)

// RenderResult reports the outcome of one render attempt. A failed render is
// data, not an error: Error is set and HTML is empty.
type RenderResult struct {
	HTML     string
	FinalURL string
	Tier     string
	Error    string
}

func (r RenderResult) OK() bool {
	return r.Error == "" && r.HTML != ""
}

type tierFunc func(ctx context.Context, url string) RenderResult

// RenderEngine fetches fully rendered HTML through a remote headless-browser
// service. Tier 1 drives a bot-bypass browser session over CDP; Tier 2 is a
// plain content fetch used when Tier 1 comes back blocked or thin.
type RenderEngine struct {
	cfg    config.RenderConfig
	scan   config.ScannerConfig
	client *http.Client
	cache  *storage.SQLiteStore // optional

	// tier implementations, swappable in tests
	unblock tierFunc
	content tierFunc
}

func NewRenderEngine(cfg config.RenderConfig, scan config.ScannerConfig, client *http.Client, cache *storage.SQLiteStore) *RenderEngine {
	e := &RenderEngine{
		cfg:    cfg,
		scan:   scan,
		client: client,
		cache:  cache,
	}
	e.unblock = e.renderUnblock
	e.content = e.renderContent
	return e
}

// Render tries the unblock tier, then the content tier. HTML shorter than the
// minimum length is treated as a bot-block page and counts as a failure.
func (e *RenderEngine) Render(ctx context.Context, pageURL string) RenderResult {
	if e.cache != nil {
		snap, err := e.cache.GetFreshSnapshot(pageURL, e.scan.SnapshotTTL)
		if err != nil {
			log.Printf("Warning: snapshot cache lookup failed: %v", err)
		} else if snap != nil && len(snap.HTML) >= e.scan.MinHTMLLength {
			log.Printf("Render: cache hit for %s", pageURL)
			return RenderResult{HTML: snap.HTML, FinalURL: snap.FinalURL, Tier: TierCache}
		}
	}

	res := e.unblock(ctx, pageURL)
	if !e.accept(res) {
		log.Printf("Render: unblock tier insufficient for %s (%d chars, err=%q), trying content tier",
			pageURL, len(res.HTML), res.Error)
		fallback := e.content(ctx, pageURL)
		if e.accept(fallback) {
			res = fallback
		} else {
			return RenderResult{
				FinalURL: pageURL,
				Tier:     TierContent,
				Error:    combineErrors(res, fallback),
			}
		}
	}

	e.saveSnapshot(pageURL, res)
	return res
}

func (e *RenderEngine) accept(res RenderResult) bool {
	return res.Error == "" && len(res.HTML) >= e.scan.MinHTMLLength
}

func combineErrors(first, second RenderResult) string {
	f := first.Error
	if f == "" {
		f = fmt.Sprintf("only %d chars", len(first.HTML))
	}
	s := second.Error
	if s == "" {
		s = fmt.Sprintf("only %d chars", len(second.HTML))
	}
	return fmt.Sprintf("unblock: %s; content: %s", f, s)
}

func (e *RenderEngine) saveSnapshot(pageURL string, res RenderResult) {
	if e.cache == nil {
		return
	}
	hash := sha256.Sum256([]byte(res.HTML))
	snap := &models.PageSnapshot{
		URL:         pageURL,
		FinalURL:    res.FinalURL,
		HTML:        res.HTML,
		ContentHash: hex.EncodeToString(hash[:16]),
		Tier:        res.Tier,
		Status:      models.SnapshotStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := e.cache.SaveSnapshot(snap); err != nil {
		log.Printf("Warning: failed to save snapshot for %s: %v", pageURL, err)
	}
}

// renderUnblock runs a scripted session against the service's bot-bypass
// browser: navigate, scroll to trigger lazy loads, click anything that looks
// like an expand-floor-plan control, then grab the settled DOM.
func (e *RenderEngine) renderUnblock(ctx context.Context, pageURL string) RenderResult {
	res := RenderResult{Tier: TierUnblock, FinalURL: pageURL}

	pw, err := playwright.Run()
	if err != nil {
		res.Error = fmt.Sprintf("start playwright: %v", err)
		return res
	}
	defer pw.Stop()

	wsURL := fmt.Sprintf("%s?token=%s&stealth=true", e.cfg.WSEndpoint, e.cfg.Token)
	browser, err := pw.Chromium.ConnectOverCDP(wsURL)
	if err != nil {
		res.Error = fmt.Sprintf("connect render service: %v", err)
		return res
	}
	defer browser.Close()

	browserCtx, err := browser.NewContext()
	if err != nil {
		res.Error = fmt.Sprintf("new context: %v", err)
		return res
	}
	defer browserCtx.Close()

	page, err := browserCtx.NewPage()
	if err != nil {
		res.Error = fmt.Sprintf("new page: %v", err)
		return res
	}

	timeout := playwright.Float(float64(e.scan.NavTimeout.Milliseconds()))
	_, err = page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   timeout,
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		// Heavy pages never go network-idle; settle for the DOM.
		_, err = page.Goto(pageURL, playwright.PageGotoOptions{
			Timeout:   timeout,
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if err != nil {
			res.Error = fmt.Sprintf("navigation failed: %v", err)
			return res
		}
	}

	page.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`)
	page.WaitForTimeout(800)
	page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
	page.WaitForTimeout(800)

	e.clickExpanders(page)

	page.WaitForTimeout(1500)

	html, err := page.Content()
	if err != nil {
		res.Error = fmt.Sprintf("read content: %v", err)
		return res
	}

	res.HTML = html
	res.FinalURL = page.URL()
	return res
}

func (e *RenderEngine) clickExpanders(page playwright.Page) {
	for _, sel := range e.scan.ClickSelectors {
		loc := page.Locator(sel)
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		if count > maxClicksPerSelector {
			count = maxClicksPerSelector
		}
		for i := 0; i < count; i++ {
			// Click failures are expected: overlays, detached nodes, etc.
			loc.Nth(i).Click(playwright.LocatorClickOptions{
				Timeout: playwright.Float(2000),
			})
		}
	}
}

// renderContent hits the service's plain content endpoint: no bot bypass, no
// interaction scripting.
func (e *RenderEngine) renderContent(ctx context.Context, pageURL string) RenderResult {
	res := RenderResult{Tier: TierContent, FinalURL: pageURL}

	body, _ := json.Marshal(map[string]interface{}{
		"url": pageURL,
		"gotoOptions": map[string]string{
			"waitUntil": "networkidle2",
		},
	})

	endpoint := fmt.Sprintf("%s/content?token=%s", e.cfg.HTTPBase, e.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		res.Error = fmt.Sprintf("content request: %v", err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		res.Error = fmt.Sprintf("content render failed %d: %s", resp.StatusCode, string(respBody))
		return res
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Sprintf("read content body: %v", err)
		return res
	}

	res.HTML = string(html)
	return res
}
