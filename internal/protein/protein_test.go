package protein

import (
	"strings"
	"testing"
)

func TestIsIdentifier_Accessions(t *testing.T) {
	for _, id := range []string{"P00533", "p00533", "A0A024R1R8", "P00533-2", "Q9Y6K9"} {
		if !IsIdentifier(id) {
			t.Errorf("expected %q to be recognised as an identifier", id)
		}
	}
}

func TestIsIdentifier_EntryNames(t *testing.T) {
	for _, id := range []string{"EGFR_HUMAN", "INS_MOUSE", "egfr_human"} {
		if !IsIdentifier(id) {
			t.Errorf("expected %q to be recognised as an identifier", id)
		}
	}
}

func TestIsIdentifier_Rejects(t *testing.T) {
	cases := []string{
		"",
		"P53",              // too short for an accession
		"hello world",      // spaces
		"MKVL",             // plain sequence fragment, too short for accession but no underscore
		"P00533-2-3",       // double isoform suffix
		"_HUMAN",           // missing name part
		"ACDEFGHIKLMNPQRS", // 16 chars, too long for accession, no underscore
	}
	for _, id := range cases {
		if IsIdentifier(id) {
			t.Errorf("expected %q to be rejected as an identifier", id)
		}
	}
}

func TestValidateSequence_Valid(t *testing.T) {
	for _, seq := range []string{"MKVLWAALLVTFLAGCQA", "mkvlwaall", "ACDE-FGHI"} {
		if err := ValidateSequence(seq); err != nil {
			t.Errorf("ValidateSequence(%q) = %v, want nil", seq, err)
		}
	}
}

func TestValidateSequence_InvalidChars(t *testing.T) {
	err := ValidateSequence("MKVL123XYZ*")
	if err == nil {
		t.Fatal("expected error for invalid characters")
	}
	// B, J, O, U, X, Z are not standard amino acids; digits and '*' never are.
	for _, want := range []string{`"1"`, `"*"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should name offending char %s", err.Error(), want)
		}
	}
}

func TestValidateSequence_Empty(t *testing.T) {
	if err := ValidateSequence(""); err == nil {
		t.Fatal("expected error for empty sequence")
	}
}

func TestClean_FastaInput(t *testing.T) {
	raw := ">sp|P00533|EGFR_HUMAN Epidermal growth factor receptor\nmkvl waal\n10 lvtfla\n"
	got := Clean(raw)
	if got != "MKVLWAALLVTFLA" {
		t.Errorf("Clean() = %q, want %q", got, "MKVLWAALLVTFLA")
	}
}

func TestClean_PlainSequence(t *testing.T) {
	if got := Clean("mkvl"); got != "MKVL" {
		t.Errorf("Clean() = %q, want %q", got, "MKVL")
	}
}
