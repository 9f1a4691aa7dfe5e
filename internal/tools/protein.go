package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/helixbot/helixbot/internal/protein"
	"github.com/helixbot/helixbot/internal/uniprot"
)

// ---------------------------------------------------------------------------
// GetProteinSequenceTool
// ---------------------------------------------------------------------------

// GetProteinSequenceTool fetches a protein entry from UniProt by accession or
// entry name.
type GetProteinSequenceTool struct {
	client *uniprot.Client
}

// NewGetProteinSequenceTool creates a GetProteinSequenceTool.
func NewGetProteinSequenceTool(client *uniprot.Client) *GetProteinSequenceTool {
	return &GetProteinSequenceTool{client: client}
}

func (t *GetProteinSequenceTool) Name() string { return "get_protein_sequence" }
func (t *GetProteinSequenceTool) Description() string {
	return "Fetch a protein's amino acid sequence from UniProt by accession (e.g. P00533) or entry name (e.g. EGFR_HUMAN)."
}
func (t *GetProteinSequenceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"uniprot_id": {
				"type": "string",
				"description": "UniProt accession (P00533) or entry name (EGFR_HUMAN)"
			}
		},
		"required": ["uniprot_id"]
	}`)
}

func (t *GetProteinSequenceTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	id, _ := params["uniprot_id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return "Error: uniprot_id is required", nil
	}
	if !protein.IsIdentifier(id) {
		return fmt.Sprintf("Error: %q does not look like a UniProt accession or entry name", id), nil
	}

	entry, err := t.client.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, uniprot.ErrNotFound) {
			return fmt.Sprintf("No UniProt entry found for %q. Check the accession or entry name.", id), nil
		}
		return "", fmt.Errorf("uniprot fetch %s: %w", id, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Accession: %s\n", entry.Accession)
	if entry.EntryName != "" {
		fmt.Fprintf(&sb, "Entry name: %s\n", entry.EntryName)
	}
	fmt.Fprintf(&sb, "Organism: %s\n", entry.Organism)
	fmt.Fprintf(&sb, "Length: %d aa\n", len(entry.Sequence))
	fmt.Fprintf(&sb, "Sequence:\n%s", wrapSequence(entry.Sequence, 60))
	return sb.String(), nil
}

// ---------------------------------------------------------------------------
// SearchProteinsTool
// ---------------------------------------------------------------------------

// SearchProteinsTool runs a filtered keyword search against UniProtKB.
type SearchProteinsTool struct {
	client *uniprot.Client
}

// NewSearchProteinsTool creates a SearchProteinsTool.
func NewSearchProteinsTool(client *uniprot.Client) *SearchProteinsTool {
	return &SearchProteinsTool{client: client}
}

func (t *SearchProteinsTool) Name() string { return "search_proteins" }
func (t *SearchProteinsTool) Description() string {
	return "Search UniProtKB for proteins by name or keyword, optionally filtered by organism. Returns accessions, names, and lengths."
}
func (t *SearchProteinsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Search terms, e.g. \"tyrosine kinase\""
			},
			"organism": {
				"type": "string",
				"description": "Organism name (\"Homo sapiens\") or NCBI taxonomy ID (\"9606\")"
			},
			"keyword": {
				"type": "string",
				"description": "UniProt keyword filter, e.g. \"Kinase\""
			},
			"limit": {
				"type": "integer",
				"description": "Max results (1-50, default 10)"
			}
		},
		"required": ["query"]
	}`)
}

func (t *SearchProteinsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Error: query is required", nil
	}
	organism, _ := params["organism"].(string)
	keyword, _ := params["keyword"].(string)
	limit := intParam(params, "limit", 0)

	hits, err := t.client.Search(ctx, query, organism, keyword, limit)
	if err != nil {
		return "", fmt.Errorf("uniprot search %q: %w", query, err)
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No proteins found for %q.", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d proteins for %q:\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   %s — %s, %d aa\n",
			i+1, h.Accession, h.EntryName, h.ProteinName, h.Organism, h.Length)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// ---------------------------------------------------------------------------
// PredictProteinFunctionTool
// ---------------------------------------------------------------------------

// PredictProteinFunctionTool cleans and validates a sequence, then runs the
// function predictor over it.
type PredictProteinFunctionTool struct {
	predictor *protein.Predictor
}

// NewPredictProteinFunctionTool creates a PredictProteinFunctionTool.
func NewPredictProteinFunctionTool(p *protein.Predictor) *PredictProteinFunctionTool {
	return &PredictProteinFunctionTool{predictor: p}
}

func (t *PredictProteinFunctionTool) Name() string { return "predict_protein_function" }
func (t *PredictProteinFunctionTool) Description() string {
	return "Predict the biological function of a protein from its amino acid sequence. Accepts a raw sequence or FASTA-formatted input."
}
func (t *PredictProteinFunctionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"sequence": {
				"type": "string",
				"description": "Amino acid sequence (raw or FASTA)"
			},
			"organism": {
				"type": "string",
				"description": "Source organism, if known"
			}
		},
		"required": ["sequence"]
	}`)
}

func (t *PredictProteinFunctionTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	raw, _ := params["sequence"].(string)
	organism, _ := params["organism"].(string)

	seq := protein.Clean(raw)
	if err := protein.ValidateSequence(seq); err != nil {
		return "Error: " + err.Error(), nil
	}

	pred, err := t.predictor.Predict(ctx, seq, organism)
	if err != nil {
		return "", fmt.Errorf("predict function: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Predicted function: %s\n", pred.Function)
	fmt.Fprintf(&sb, "Confidence: %.3f\n", pred.Confidence)
	fmt.Fprintf(&sb, "Sequence length: %d aa\n", len(seq))
	if organism != "" {
		fmt.Fprintf(&sb, "Organism: %s\n", organism)
	}
	fmt.Fprintf(&sb, "Model: %s (%.3fs)", pred.ModelVersion, pred.ProcessingTime)
	return sb.String(), nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// wrapSequence renders a sequence in fixed-width lines, FASTA style.
func wrapSequence(seq string, width int) string {
	if width <= 0 || len(seq) <= width {
		return seq
	}
	var sb strings.Builder
	for i := 0; i < len(seq); i += width {
		end := i + width
		if end > len(seq) {
			end = len(seq)
		}
		sb.WriteString(seq[i:end])
		if end < len(seq) {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// intParam reads an integer argument that may arrive as float64 (JSON) or int.
func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
