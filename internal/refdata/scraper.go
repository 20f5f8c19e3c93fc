package refdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/httputil"
	"github.com/pinger/rstrength/pkg/logger"
)

// ProfileScraper fills classification gaps for symbols absent from the
// CSV by scraping the provider's quote profile page.
type ProfileScraper struct {
	httpClient *httputil.Client
	baseURL    string
	logger     *logger.Logger
}

// NewProfileScraper creates a profile scraper.
func NewProfileScraper(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *ProfileScraper {
	return &ProfileScraper{
		httpClient: httpClient,
		baseURL:    cfg.RefData.ProfileURL,
		logger:     log,
	}
}

// Fetch scrapes the profile page for a symbol. A page without sector and
// industry labels yields nil, not an error: funds and indexes have no
// classification.
func (s *ProfileScraper) Fetch(ctx context.Context, symbol string) (*contracts.Classification, error) {
	fullURL := fmt.Sprintf("%s/%s/profile", s.baseURL, symbol)

	resp, err := s.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	})
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse profile HTML: %w", err)
	}

	sector := labeledValue(doc, "sector")
	industry := labeledValue(doc, "industry")
	if sector == "" && industry == "" {
		s.logger.WithField("symbol", symbol).Debug("Profile page carries no classification")
		return nil, nil
	}

	c := &contracts.Classification{
		Symbol:   symbol,
		Name:     strings.TrimSpace(doc.Find("h1").First().Text()),
		Sector:   sector,
		Industry: industry,
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"sector":   c.Sector,
		"industry": c.Industry,
	}).Debug("Scraped classification from profile")

	return c, nil
}

// labeledValue finds the value element paired with a "Sector:" or
// "Industry:" label. The label text is matched case-insensitively with
// trailing colons and "(s)" suffixes stripped, so minor page revisions
// do not break the scrape.
func labeledValue(doc *goquery.Document, label string) string {
	var value string

	doc.Find("span, dt, strong").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		text = strings.TrimSuffix(text, ":")
		text = strings.TrimSuffix(text, "(s)")

		if text != label {
			return true
		}

		next := sel.Next()
		for next.Length() > 0 {
			if v := strings.TrimSpace(next.Text()); v != "" {
				value = v
				return false
			}
			next = next.Next()
		}
		return true
	})

	return value
}
