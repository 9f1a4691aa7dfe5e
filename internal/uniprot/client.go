// Package uniprot is a minimal client for the UniProtKB REST search API.
// It covers exactly the two operations the agent tools need: fetching one
// entry by accession or entry name, and a filtered keyword search.
package uniprot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://rest.uniprot.org/uniprotkb/search"

// ErrNotFound is returned by Fetch when no entry matches the identifier.
var ErrNotFound = errors.New("uniprot entry not found")

// Entry is one UniProtKB record as the agent consumes it.
type Entry struct {
	Accession string // primary accession, e.g. "P00533"
	EntryName string // e.g. "EGFR_HUMAN"
	Organism  string // scientific name
	Sequence  string
}

// SearchHit is one row of a search result.
type SearchHit struct {
	Accession   string
	EntryName   string
	ProteinName string
	Organism    string
	Length      int
}

// Client talks to the UniProtKB search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client against the public UniProt REST API.
// baseURL overrides the endpoint when non-empty (tests point it at httptest).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}
}

// wire structures: only the fields we read from the UniProt JSON.
type wireEntry struct {
	PrimaryAccession string `json:"primaryAccession"`
	UniProtkbID      string `json:"uniProtkbId"`
	Organism         struct {
		ScientificName string `json:"scientificName"`
	} `json:"organism"`
	Sequence struct {
		Value  string `json:"value"`
		Length int    `json:"length"`
	} `json:"sequence"`
	ProteinDescription struct {
		RecommendedName struct {
			FullName struct {
				Value string `json:"value"`
			} `json:"fullName"`
		} `json:"recommendedName"`
		SubmissionNames []struct {
			FullName struct {
				Value string `json:"value"`
			} `json:"fullName"`
		} `json:"submissionNames"`
	} `json:"proteinDescription"`
}

type wireResponse struct {
	Results []wireEntry `json:"results"`
}

// Fetch retrieves one entry by accession (P00533) or entry name (EGFR_HUMAN).
// The query matches both fields so either identifier form works. Returns
// ErrNotFound when UniProt has no matching entry.
func (c *Client) Fetch(ctx context.Context, identifier string) (*Entry, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is empty")
	}

	query := fmt.Sprintf("accession:%s OR id:%s", identifier, strings.ToUpper(identifier))
	params := url.Values{
		"query":  {query},
		"fields": {"accession,id,organism_name,sequence"},
		"format": {"json"},
		"size":   {"1"},
	}

	var wire wireResponse
	if err := c.get(ctx, params, &wire); err != nil {
		return nil, err
	}
	if len(wire.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}

	w := wire.Results[0]
	if w.Sequence.Value == "" {
		return nil, fmt.Errorf("%w: %s has no sequence data", ErrNotFound, identifier)
	}
	organism := w.Organism.ScientificName
	if organism == "" {
		organism = "Unknown organism"
	}
	accession := w.PrimaryAccession
	if accession == "" {
		accession = identifier
	}
	return &Entry{
		Accession: accession,
		EntryName: w.UniProtkbID,
		Organism:  organism,
		Sequence:  w.Sequence.Value,
	}, nil
}

// Search runs a filtered keyword search. organism may be a scientific name or
// a numeric NCBI taxonomy ID; keyword is a UniProt keyword filter. limit is
// clamped to [1, 50] and defaults to 10 when zero or negative.
func (c *Client) Search(ctx context.Context, query, organism, keyword string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	limit = clampLimit(limit)

	parts := []string{"(" + query + ")"}
	if organism != "" {
		if isDigits(organism) {
			parts = append(parts, "taxonomy_id:"+organism)
		} else {
			parts = append(parts, fmt.Sprintf("organism_name:%q", organism))
		}
	}
	if keyword != "" {
		parts = append(parts, "keyword:"+keyword)
	}

	params := url.Values{
		"query":  {strings.Join(parts, " AND ")},
		"fields": {"accession,id,protein_name,organism_name,length"},
		"format": {"json"},
		"size":   {fmt.Sprintf("%d", limit)},
	}

	var wire wireResponse
	if err := c.get(ctx, params, &wire); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(wire.Results))
	for _, w := range wire.Results {
		name := w.ProteinDescription.RecommendedName.FullName.Value
		if name == "" && len(w.ProteinDescription.SubmissionNames) > 0 {
			name = w.ProteinDescription.SubmissionNames[0].FullName.Value
		}
		if name == "" {
			name = "N/A"
		}
		organism := w.Organism.ScientificName
		if organism == "" {
			organism = "N/A"
		}
		hits = append(hits, SearchHit{
			Accession:   w.PrimaryAccession,
			EntryName:   w.UniProtkbID,
			ProteinName: name,
			Organism:    organism,
			Length:      w.Sequence.Length,
		})
	}
	return hits, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build uniprot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("uniprot request", "query", params.Get("query"), "size", params.Get("size"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uniprot request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read uniprot response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("uniprot returned status %d: %s", resp.StatusCode, snippet)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse uniprot response: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50
	}
	return limit
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
