// file: internal/testutil/mock_openlibrary.go
// version: 1.1.0
// guid: c3d4e5f6-a7b8-9012-cdef-345678901abc

package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// MockOpenLibraryServer creates an httptest.Server that mimics the Open
// Library search API. The responses map keys are matched against the request
// URL using Contains.
func MockOpenLibraryServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for pattern, body := range responses {
			if strings.Contains(r.URL.String(), pattern) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
				return
			}
		}
		http.NotFound(w, r)
	}))
}

// OpenLibraryHobbitResponse is a standard search response for "The Hobbit".
const OpenLibraryHobbitResponse = `{
	"numFound": 1,
	"start": 0,
	"docs": [{
		"key": "/works/OL262758W",
		"title": "The Hobbit",
		"author_name": ["J.R.R. Tolkien"],
		"first_publish_year": 1937,
		"publisher": ["Houghton Mifflin"],
		"language": ["eng"],
		"isbn": ["0618260307", "9780618260300"],
		"cover_i": 14627509
	}]
}`

// OpenLibraryDuneResponse is a search response for "Dune" with series-ish
// subject data and two editions' ISBNs.
const OpenLibraryDuneResponse = `{
	"numFound": 1,
	"start": 0,
	"docs": [{
		"key": "/works/OL893415W",
		"title": "Dune",
		"author_name": ["Frank Herbert"],
		"first_publish_year": 1965,
		"publisher": ["Chilton Books"],
		"language": ["eng"],
		"isbn": ["0441172717", "9780441172719"],
		"cover_i": 11481354
	}]
}`

// OpenLibraryEmptyResponse returns no results.
const OpenLibraryEmptyResponse = `{"numFound":0,"start":0,"docs":[]}`
