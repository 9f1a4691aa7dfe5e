package uniprot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeUniProt serves a canned JSON body and records the last query values.
func fakeUniProt(t *testing.T, body string) (*Client, *http.Request) {
	t.Helper()
	var captured http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), &captured
}

const egfrBody = `{
	"results": [{
		"primaryAccession": "P00533",
		"uniProtkbId": "EGFR_HUMAN",
		"organism": {"scientificName": "Homo sapiens"},
		"sequence": {"value": "MRPSGTAGAALLALLAALCPASRA", "length": 24}
	}]
}`

func TestFetch_ByAccession(t *testing.T) {
	c, captured := fakeUniProt(t, egfrBody)

	entry, err := c.Fetch(context.Background(), "p00533")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Accession != "P00533" {
		t.Errorf("accession = %q, want P00533", entry.Accession)
	}
	if entry.Organism != "Homo sapiens" {
		t.Errorf("organism = %q, want Homo sapiens", entry.Organism)
	}
	if entry.Sequence == "" {
		t.Error("sequence should not be empty")
	}

	q := captured.URL.Query()
	if got := q.Get("query"); got != "accession:p00533 OR id:P00533" {
		t.Errorf("query = %q", got)
	}
	if got := q.Get("size"); got != "1" {
		t.Errorf("size = %q, want 1", got)
	}
	if got := q.Get("fields"); got != "accession,id,organism_name,sequence" {
		t.Errorf("fields = %q", got)
	}
}

func TestFetch_NotFound(t *testing.T) {
	c, _ := fakeUniProt(t, `{"results": []}`)

	_, err := c.Fetch(context.Background(), "ZZZZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetch_EmptyIdentifier(t *testing.T) {
	c := NewClient("http://localhost:0")
	if _, err := c.Fetch(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty identifier")
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Fetch(context.Background(), "P00533")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("server errors must not be reported as not-found")
	}
}

const searchBody = `{
	"results": [{
		"primaryAccession": "P00533",
		"uniProtkbId": "EGFR_HUMAN",
		"organism": {"scientificName": "Homo sapiens"},
		"sequence": {"length": 1210},
		"proteinDescription": {"recommendedName": {"fullName": {"value": "Epidermal growth factor receptor"}}}
	}]
}`

func TestSearch_QueryComposition(t *testing.T) {
	c, captured := fakeUniProt(t, searchBody)

	hits, err := c.Search(context.Background(), "EGFR kinase", "Homo sapiens", "Kinase", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ProteinName != "Epidermal growth factor receptor" {
		t.Errorf("protein name = %q", hits[0].ProteinName)
	}
	if hits[0].Length != 1210 {
		t.Errorf("length = %d, want 1210", hits[0].Length)
	}

	q := captured.URL.Query()
	want := `(EGFR kinase) AND organism_name:"Homo sapiens" AND keyword:Kinase`
	if got := q.Get("query"); got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
	if got := q.Get("fields"); got != "accession,id,protein_name,organism_name,length" {
		t.Errorf("fields = %q", got)
	}
}

func TestSearch_TaxonomyID(t *testing.T) {
	c, captured := fakeUniProt(t, `{"results": []}`)

	if _, err := c.Search(context.Background(), "insulin", "9606", "", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "(insulin) AND taxonomy_id:9606"
	if got := captured.URL.Query().Get("query"); got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
	// Zero limit falls back to the default.
	if got := captured.URL.Query().Get("size"); got != "10" {
		t.Errorf("size = %q, want 10", got)
	}
}

func TestSearch_LimitClamped(t *testing.T) {
	c, captured := fakeUniProt(t, `{"results": []}`)

	if _, err := c.Search(context.Background(), "kinase", "", "", 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := captured.URL.Query().Get("size"); got != "50" {
		t.Errorf("size = %q, want 50 (clamped)", got)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := NewClient("http://localhost:0")
	if _, err := c.Search(context.Background(), "  ", "", "", 10); err == nil {
		t.Fatal("expected error for empty query")
	}
}
