package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Render *http.Client // content-tier renders, generous timeout
	Search *http.Client // web-search API
	Oracle *http.Client // extraction oracle, completions can be slow
}

func NewClients() *Clients {
	return &Clients{
		Render: &http.Client{Timeout: 60 * time.Second},
		Search: &http.Client{Timeout: 30 * time.Second},
		Oracle: &http.Client{Timeout: 90 * time.Second},
	}
}
