// file: internal/provider/openlibrary.go
// version: 1.0.0
// guid: 5d8f1a3b-6c9e-4d2f-8b5a-7c0d1e2f3a4b

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jdfalk/bookbot/internal/models"
)

// OpenLibraryAdapter queries the Open Library search API. No API key needed.
type OpenLibraryAdapter struct {
	httpClient *http.Client
	baseURL    string
}

// NewOpenLibrary creates an adapter against the public Open Library endpoint.
// OPENLIBRARY_BASE_URL overrides the endpoint, which the tests use to point
// at a local httptest server.
func NewOpenLibrary() *OpenLibraryAdapter {
	baseURL := os.Getenv("OPENLIBRARY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return NewOpenLibraryWithBaseURL(baseURL)
}

// NewOpenLibraryWithBaseURL creates an adapter with a custom base URL.
func NewOpenLibraryWithBaseURL(baseURL string) *OpenLibraryAdapter {
	return &OpenLibraryAdapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name implements Adapter.
func (a *OpenLibraryAdapter) Name() string { return "openlibrary" }

// searchDoc is one result document from the Open Library search API.
type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	Publisher        []string `json:"publisher"`
	Language         []string `json:"language"`
	CoverI           int      `json:"cover_i"`
	NumberOfPages    int      `json:"number_of_pages_median"`
}

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

// Search implements Adapter over GET /search.json.
func (a *OpenLibraryAdapter) Search(ctx context.Context, q models.Query) ([]models.Candidate, error) {
	params := url.Values{}
	switch {
	case q.ISBN != "":
		params.Set("isbn", q.ISBN)
	case q.Title != "" && q.Author != "":
		params.Set("title", q.Title)
		params.Set("author", q.Author)
	case q.Title != "":
		params.Set("title", q.Title)
	default:
		return nil, fmt.Errorf("openlibrary: query needs a title or isbn")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	params.Set("limit", fmt.Sprintf("%d", limit))

	reqURL := fmt.Sprintf("%s/search.json?%s", a.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openlibrary: search returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("openlibrary: decode response: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(sr.Docs))
	for _, doc := range sr.Docs {
		c := models.Candidate{
			Provider:   a.Name(),
			ExternalID: doc.Key,
			Title:      doc.Title,
			Authors:    doc.AuthorName,
			Year:       doc.FirstPublishYear,
		}
		if len(doc.Publisher) > 0 {
			c.Publisher = doc.Publisher[0]
		}
		if len(doc.Language) > 0 {
			c.Language = doc.Language[0]
		}
		for _, isbn := range doc.ISBN {
			switch len(isbn) {
			case 10:
				if c.ISBN10 == "" {
					c.ISBN10 = isbn
				}
			case 13:
				if c.ISBN13 == "" {
					c.ISBN13 = isbn
				}
			}
		}
		if doc.CoverI > 0 {
			c.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
