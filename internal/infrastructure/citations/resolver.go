package citations

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// WebResolver fetches a cited page and extracts its title so the final
// document can render a readable reference instead of a bare URL.
type WebResolver struct {
	client *http.Client
}

var _ ports.CitationResolver = (*WebResolver)(nil)

// NewWebResolver wires an HTTP client; a nil client gets a 10s-timeout default.
func NewWebResolver(client *http.Client) *WebResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebResolver{client: client}
}

// Resolve fetches the page and returns a titled citation. Callers treat
// failures as soft: an unresolved citation keeps its URL.
func (r *WebResolver) Resolve(ctx context.Context, pageURL string) (domain.Citation, error) {
	doc, err := r.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.Citation{}, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if og, exists := doc.Find(`meta[property="og:title"]`).First().Attr("content"); exists {
			title = strings.TrimSpace(og)
		}
	}
	if title == "" {
		return domain.Citation{}, fmt.Errorf("no title found at %s", pageURL)
	}

	return domain.Citation{URL: pageURL, Title: title}, nil
}

func (r *WebResolver) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NichePress/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("citation source returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
