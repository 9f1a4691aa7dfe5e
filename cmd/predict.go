package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixbot/helixbot/internal/config"
	"github.com/helixbot/helixbot/internal/protein"
	"github.com/helixbot/helixbot/internal/uniprot"
)

var predictOrganism string

var predictCmd = &cobra.Command{
	Use:   "predict <accession-or-sequence>",
	Short: "Predict the function of a protein",
	Long: `Predict the function of a protein without starting a chat session.

The argument is either a UniProt identifier (accession like P00533 or entry
name like EGFR_HUMAN), which is fetched from UniProtKB first, or a raw amino
acid sequence (FASTA headers and line numbers are stripped).`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&predictOrganism, "organism", "", "Organism hint for the predictor")
}

func runPredict(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	input := strings.TrimSpace(args[0])
	sequence := input
	organism := predictOrganism
	source := "user-provided sequence"

	if protein.IsIdentifier(input) {
		base := strings.TrimSuffix(cfg.Tools.UniProt.BaseURL, "/")
		client := uniprot.NewClient(base + "/search")

		fmt.Printf("%s Fetching %s from UniProt...\n", logo, input)
		entry, err := client.Fetch(ctx, input)
		if err != nil {
			if errors.Is(err, uniprot.ErrNotFound) {
				return fmt.Errorf("no UniProt entry found for %q", input)
			}
			return fmt.Errorf("fetch %s: %w", input, err)
		}
		sequence = entry.Sequence
		if organism == "" {
			organism = entry.Organism
		}
		source = fmt.Sprintf("UniProt %s (%s)", entry.Accession, entry.EntryName)
	}

	sequence = protein.Clean(sequence)
	if err := protein.ValidateSequence(sequence); err != nil {
		return fmt.Errorf("invalid sequence: %w", err)
	}

	fmt.Printf("%s Running predictor on %d residues...\n\n", logo, len(sequence))

	pred, err := protein.NewPredictor(nil).Predict(ctx, sequence, organism)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	fmt.Println("Prediction Report")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Source:          %s\n", source)
	if organism != "" {
		fmt.Printf("Organism:        %s\n", organism)
	}
	fmt.Printf("Sequence length: %d aa\n", len(sequence))
	fmt.Printf("Function:        %s\n", pred.Function)
	fmt.Printf("Confidence:      %.3f\n", pred.Confidence)
	fmt.Printf("Model:           %s\n", pred.ModelVersion)
	fmt.Printf("Elapsed:         %.2fs\n", pred.ProcessingTime)
	return nil
}
