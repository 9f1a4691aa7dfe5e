package tools

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/helixbot/helixbot/internal/protein"
	"github.com/helixbot/helixbot/internal/uniprot"
)

func newUniProtStub(t *testing.T, body string) *uniprot.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return uniprot.NewClient(srv.URL)
}

func TestGetProteinSequenceTool_Fetch(t *testing.T) {
	client := newUniProtStub(t, `{"results":[{
		"primaryAccession":"P00533",
		"uniProtkbId":"EGFR_HUMAN",
		"organism":{"scientificName":"Homo sapiens"},
		"sequence":{"value":"MRPSGTAGAALLALLAALCPASRA","length":24}
	}]}`)
	tool := NewGetProteinSequenceTool(client)

	out, err := tool.Execute(context.Background(), map[string]any{"uniprot_id": "P00533"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"P00533", "EGFR_HUMAN", "Homo sapiens", "24 aa", "MRPSGTAGAALLALLAALCPASRA"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGetProteinSequenceTool_NotFound(t *testing.T) {
	client := newUniProtStub(t, `{"results":[]}`)
	tool := NewGetProteinSequenceTool(client)

	out, err := tool.Execute(context.Background(), map[string]any{"uniprot_id": "P99999"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "No UniProt entry found") {
		t.Errorf("output = %q", out)
	}
}

func TestGetProteinSequenceTool_RejectsNonIdentifier(t *testing.T) {
	tool := NewGetProteinSequenceTool(uniprot.NewClient("http://unused.invalid"))

	out, err := tool.Execute(context.Background(), map[string]any{"uniprot_id": "not an id!"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "does not look like a UniProt accession") {
		t.Errorf("output = %q", out)
	}
}

func TestSearchProteinsTool_RendersHits(t *testing.T) {
	client := newUniProtStub(t, `{"results":[
		{"primaryAccession":"P00533","uniProtkbId":"EGFR_HUMAN",
		 "organism":{"scientificName":"Homo sapiens"},
		 "sequence":{"length":1210},
		 "proteinDescription":{"recommendedName":{"fullName":{"value":"Epidermal growth factor receptor"}}}},
		{"primaryAccession":"Q9UM73","uniProtkbId":"ALK_HUMAN",
		 "organism":{"scientificName":"Homo sapiens"},
		 "sequence":{"length":1620},
		 "proteinDescription":{"recommendedName":{"fullName":{"value":"ALK tyrosine kinase receptor"}}}}
	]}`)
	tool := NewSearchProteinsTool(client)

	out, err := tool.Execute(context.Background(), map[string]any{
		"query":    "tyrosine kinase",
		"organism": "Homo sapiens",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Found 2 proteins") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Epidermal growth factor receptor") || !strings.Contains(out, "1210 aa") {
		t.Errorf("missing hit details:\n%s", out)
	}
}

func TestPredictProteinFunctionTool_CleansFASTA(t *testing.T) {
	p := protein.NewPredictor(rand.New(rand.NewSource(1)))
	tool := NewPredictProteinFunctionTool(p)

	fasta := ">sp|P01308|INS_HUMAN Insulin\nMALWMRLLPL LALLALWGPD PAAA\n"
	out, err := tool.Execute(context.Background(), map[string]any{
		"sequence": fasta,
		"organism": "Homo sapiens",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Predicted function:") {
		t.Errorf("output = %q", out)
	}
	// Header and whitespace stripped: 24 residues remain.
	if !strings.Contains(out, "Sequence length: 24 aa") {
		t.Errorf("expected cleaned length 24:\n%s", out)
	}
	if !strings.Contains(out, "sim_v0.2") {
		t.Errorf("missing model version:\n%s", out)
	}
}

func TestPredictProteinFunctionTool_InvalidSequence(t *testing.T) {
	p := protein.NewPredictor(rand.New(rand.NewSource(1)))
	tool := NewPredictProteinFunctionTool(p)

	out, err := tool.Execute(context.Background(), map[string]any{"sequence": "MKTXZ123"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Error:") || !strings.Contains(out, "invalid characters") {
		t.Errorf("output = %q", out)
	}
}

func TestWrapSequence(t *testing.T) {
	got := wrapSequence("ABCDEFGHIJ", 4)
	want := "ABCD\nEFGH\nIJ"
	if got != want {
		t.Errorf("wrapSequence = %q, want %q", got, want)
	}
	if wrapSequence("ABC", 10) != "ABC" {
		t.Error("short sequence should be unchanged")
	}
}
