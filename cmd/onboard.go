package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/helixbot/helixbot/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	def := config.DefaultConfig()
	workspace := def.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	createWorkspaceTemplates(workspace)

	fmt.Printf("\n%s helixbot is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key to %s\n", cfgPath)
	fmt.Println("     Get one at: https://openrouter.ai/keys")
	fmt.Printf("  2. Chat: helixbot agent -m \"What does P00533 do?\"\n")
	return nil
}

func createWorkspaceTemplates(workspace string) {
	templates := map[string]string{
		"AGENTS.md": `# Agent Instructions

You are a protein research assistant. Be precise, cite your sources, and say
when you are unsure.

## Guidelines

- Look up sequences and annotations before answering from memory
- Always report accession numbers and PMIDs you relied on
- Flag prediction confidence scores as estimates, not ground truth
- Remember important findings in memory/MEMORY.md; past events are logged in memory/HISTORY.md
`,
		"USER.md": `# User

Information about the user goes here.

## Preferences

- Organisms of interest: (e.g. human, mouse, E. coli)
- Research focus: (e.g. kinases, membrane proteins)
- Communication style: (casual/formal)
`,
		"TOOLS.md": `# Tools

Notes about available tools and local conventions.

- get_protein_sequence: fetch a UniProt entry by accession or entry name
- search_proteins: keyword search against UniProtKB
- predict_protein_function: run the function predictor on a sequence
- search_literature: Europe PMC search for papers
`,
		"WATCHLIST.md": `# Watchlist

<!-- Add proteins to re-check periodically, one per line. -->
<!-- Lines starting with '- [ ]' are ignored until checked. -->
`,
	}

	for filename, content := range templates {
		p := filepath.Join(workspace, filename)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			_ = os.WriteFile(p, []byte(content), 0o644)
			fmt.Printf("  Created %s\n", filename)
		}
	}

	memDir := filepath.Join(workspace, "memory")
	_ = os.MkdirAll(memDir, 0o755)

	memFile := filepath.Join(memDir, "MEMORY.md")
	if _, err := os.Stat(memFile); os.IsNotExist(err) {
		_ = os.WriteFile(memFile, []byte(`# Long-term Memory

This file stores important information that should persist across sessions.

## User Information

(Important facts about the user)

## Research Notes

(Proteins, pathways, and findings worth keeping)

## Important Notes

(Things to remember)
`), 0o644)
		fmt.Println("  Created memory/MEMORY.md")
	}

	histFile := filepath.Join(memDir, "HISTORY.md")
	if _, err := os.Stat(histFile); os.IsNotExist(err) {
		_ = os.WriteFile(histFile, []byte(""), 0o644)
		fmt.Println("  Created memory/HISTORY.md")
	}

	_ = os.MkdirAll(filepath.Join(workspace, "skills"), 0o755)
}
