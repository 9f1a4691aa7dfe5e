package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchLiteratureTool_RendersResults(t *testing.T) {
	var gotQuery, gotPageSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotPageSize = r.URL.Query().Get("pageSize")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultList":{"result":[
			{"title":"EGFR mutations in lung cancer.","authorString":"Lynch TJ, Bell DW.",
			 "journalTitle":"N Engl J Med","pubYear":"2004","pmid":"15118073"},
			{"title":"Structural basis of kinase inhibition.","authorString":"Stamos J.",
			 "journalTitle":"J Biol Chem","pubYear":"2002","pmid":"12297050","doi":"10.1074/jbc.M207135200"}
		]}}`))
	}))
	defer srv.Close()

	tool := NewSearchLiteratureTool(srv.URL, 5)
	out, err := tool.Execute(context.Background(), map[string]any{
		"query": "EGFR lung cancer",
		"limit": 2,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if gotQuery != "EGFR lung cancer" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotPageSize != "2" {
		t.Errorf("pageSize = %q", gotPageSize)
	}
	for _, want := range []string{"Found 2 publications", "EGFR mutations in lung cancer", "PMID: 15118073", "N Engl J Med", "doi:10.1074"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSearchLiteratureTool_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultList":{"result":[]}}`))
	}))
	defer srv.Close()

	tool := NewSearchLiteratureTool(srv.URL, 5)
	out, err := tool.Execute(context.Background(), map[string]any{"query": "zzz"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "No publications found") {
		t.Errorf("output = %q", out)
	}
}

func TestFetchWebpageTool_ExtractsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!doctype html><html><head><title>Kinases</title></head>
			<body><article><h1>Protein kinases</h1>
			<p>Kinases transfer phosphate groups to substrates. This paragraph has enough
			content for the readability extractor to treat it as the article body, which
			needs a reasonable amount of text to score the node highly.</p>
			</article></body></html>`))
	}))
	defer srv.Close()

	tool := NewFetchWebpageTool(0)
	out, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, `"extractor":"readability"`) {
		t.Errorf("expected readability extraction:\n%s", out)
	}
	if !strings.Contains(out, "phosphate groups") {
		t.Errorf("expected article text in output:\n%s", out)
	}
}

func TestFetchWebpageTool_RejectsBadScheme(t *testing.T) {
	tool := NewFetchWebpageTool(0)
	out, err := tool.Execute(context.Background(), map[string]any{"url": "ftp://example.org/x"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "URL validation failed") {
		t.Errorf("output = %q", out)
	}
}
