package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"unit_scanner/config"
	"unit_scanner/models"
)

// Paths that show up in search results for a property but never carry unit
// inventory.
var nonListingPaths = []string{"/reviews", "/photos", "/ratings"}

// SearchResolver finds a property's listing URL on an external aggregator via
// a web-search API.
type SearchResolver struct {
	cfg    config.SearchConfig
	client *http.Client
}

func NewSearchResolver(cfg config.SearchConfig, client *http.Client) *SearchResolver {
	return &SearchResolver{cfg: cfg, client: client}
}

type searchReply struct {
	Organic []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"organic"`
}

// ResolveListing returns the first search result on the aggregator's domain,
// or "" when nothing matched. A miss is a normal outcome, not an error.
func (r *SearchResolver) ResolveListing(ctx context.Context, method models.ScanMethod, prop models.Property) (string, error) {
	query := fmt.Sprintf(method.QueryTemplate, prop.Name, prop.City, prop.State)

	body, _ := json.Marshal(map[string]string{"q": query})
	req, err := http.NewRequestWithContext(ctx, "POST", r.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("search failed %d: %s", resp.StatusCode, string(respBody))
	}

	var reply searchReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode search reply: %w", err)
	}

	for _, result := range reply.Organic {
		if !strings.Contains(result.Link, method.Domain) {
			continue
		}
		if isNonListingPath(result.Link) {
			continue
		}
		return result.Link, nil
	}

	return "", nil
}

func isNonListingPath(link string) bool {
	for _, p := range nonListingPaths {
		if strings.Contains(link, p) {
			return true
		}
	}
	return false
}
