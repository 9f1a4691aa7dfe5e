package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixbot/helixbot/internal/config"
	"github.com/helixbot/helixbot/internal/mcp"
	"github.com/helixbot/helixbot/internal/protein"
	"github.com/helixbot/helixbot/internal/tools"
	"github.com/helixbot/helixbot/internal/uniprot"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Expose the protein tools as an MCP server on stdio",
	Long: `Serve the protein research tools over the Model Context Protocol.

Speaks line-delimited JSON-RPC on stdin/stdout, so any MCP client (editors,
other agents) can call get_protein_sequence, search_proteins,
predict_protein_function, search_literature, and fetch_webpage directly.
No LLM provider is needed; the tools run locally.`,
	RunE: runMCPServe,
}

func runMCPServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	base := strings.TrimSuffix(cfg.Tools.UniProt.BaseURL, "/")
	up := uniprot.NewClient(base + "/search")
	pred := protein.NewPredictor(nil)

	list := tools.NewToolList(
		tools.NewGetProteinSequenceTool(up),
		tools.NewSearchProteinsTool(up),
		tools.NewPredictProteinFunctionTool(pred),
		tools.NewSearchLiteratureTool(cfg.Tools.Literature.BaseURL, cfg.Tools.Literature.MaxResults),
		tools.NewFetchWebpageTool(0),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer("helixbot", version, list)
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}
