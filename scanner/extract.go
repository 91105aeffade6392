package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"unit_scanner/config"
	"unit_scanner/models"
)

// Extractor turns a rendered page into candidate unit records via a
// text-to-structured-data oracle.
type Extractor struct {
	cfg    config.OracleConfig
	scan   config.ScannerConfig
	client *http.Client
}

func NewExtractor(cfg config.OracleConfig, scan config.ScannerConfig, client *http.Client) *Extractor {
	return &Extractor{cfg: cfg, scan: scan, client: client}
}

// ExtractionResult carries whatever the oracle produced. An empty unit list
// is a normal outcome; Error explains why when extraction produced nothing.
type ExtractionResult struct {
	Units    []models.CandidateUnit
	FoundAny bool
	Reason   string
	Error    string
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanText strips non-content blocks and tags, collapses whitespace, and
// truncates to the oracle's input budget. Unit tables sit near the top of the
// rendered DOM, so truncation rarely costs anything.
func CleanText(html string, budget int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Fall back to a crude tag strip.
		text := regexp.MustCompile(`<[^>]*>`).ReplaceAllString(html, " ")
		return truncate(collapseWhitespace(text), budget)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	return truncate(collapseWhitespace(text), budget)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so the cut never emits a partial rune.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

const extractionPrompt = `You are extracting available rental units from apartment listing page text for the property %q.

Identify only SPECIFIC unit numbers (e.g. "Unit 204", "#1107B"). Do NOT report aggregate counts like "5 units available" as units.

Respond with exactly one JSON object, no other text, of this shape:
{"units": [{"unit_number": "204", "beds": 1, "baths": 1, "sqft": 750, "rent": 1850, "available_from": "2026-10-01", "floor_plan_name": "A1"}], "found_any_unit_data": true, "reason": "optional note"}

Rules:
- rent must be a bare number, no currency symbols or commas
- available_from must be YYYY-MM-DD, or null if available now
- sqft, rent, available_from may be null when unknown
- found_any_unit_data is false when the page has no unit-level data

Page text:
%s`

// Extract sends cleaned page text to the oracle and parses its reply. A
// malformed or empty reply returns an empty result with a descriptive Error,
// never a Go error: finding nothing is an expected outcome.
func (x *Extractor) Extract(ctx context.Context, html, propertyName string) ExtractionResult {
	text := CleanText(html, x.scan.TextBudget)
	if text == "" {
		return ExtractionResult{Error: "page has no text content"}
	}

	reply, err := x.complete(ctx, fmt.Sprintf(extractionPrompt, propertyName, text))
	if err != nil {
		return ExtractionResult{Error: fmt.Sprintf("oracle call failed: %v", err)}
	}

	return parseOracleReply(reply)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (x *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model:       x.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", x.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+x.cfg.APIKey)

	resp, err := x.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

type oracleReply struct {
	Units            *[]models.CandidateUnit `json:"units"`
	FoundAnyUnitData bool                    `json:"found_any_unit_data"`
	Reason           string                  `json:"reason"`
}

// parseOracleReply locates the first balanced JSON object in the reply (the
// oracle may wrap it in prose) and decodes it.
func parseOracleReply(reply string) ExtractionResult {
	raw, ok := firstJSONObject(reply)
	if !ok {
		return ExtractionResult{Error: "No JSON in response"}
	}

	var parsed oracleReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return ExtractionResult{Error: fmt.Sprintf("parse extraction JSON: %v", err)}
	}
	if parsed.Units == nil {
		return ExtractionResult{Error: "no units key in response", FoundAny: parsed.FoundAnyUnitData, Reason: parsed.Reason}
	}

	return ExtractionResult{
		Units:    *parsed.Units,
		FoundAny: parsed.FoundAnyUnitData,
		Reason:   parsed.Reason,
	}
}

// firstJSONObject returns the first balanced {...} substring, respecting
// string literals and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
