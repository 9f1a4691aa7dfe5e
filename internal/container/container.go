// Package container wires core helixbot services using go.uber.org/dig.
package container

import (
	"fmt"
	"strings"

	"go.uber.org/dig"

	"github.com/helixbot/helixbot/internal/agent"
	"github.com/helixbot/helixbot/internal/bus"
	"github.com/helixbot/helixbot/internal/config"
	"github.com/helixbot/helixbot/internal/cron"
	"github.com/helixbot/helixbot/internal/mcp"
	"github.com/helixbot/helixbot/internal/protein"
	"github.com/helixbot/helixbot/internal/providers"
	"github.com/helixbot/helixbot/internal/schema"
	"github.com/helixbot/helixbot/internal/session"
	"github.com/helixbot/helixbot/internal/tools"
	"github.com/helixbot/helixbot/internal/uniprot"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	provider schema.LLMProvider
	msgBus   *bus.MessageBus
	loop     *agent.AgentLoop
	cronSvc  *cron.Service
	registry *tools.Registry
}

func (c *Container) Provider() schema.LLMProvider { return c.provider }
func (c *Container) MessageBus() *bus.MessageBus  { return c.msgBus }
func (c *Container) AgentLoop() *agent.AgentLoop  { return c.loop }
func (c *Container) CronService() *cron.Service   { return c.cronSvc }

// ToolRegistry returns the full registry used by the main agent; the mcpserve
// command serves its native tools over MCP.
func (c *Container) ToolRegistry() *tools.Registry { return c.registry }

// agentRegistry wraps the full tool registry used by the main agent loop.
type agentRegistry struct{ *tools.Registry }

// subagentRegistry wraps the restricted tool registry used by subagents.
// It must not contain spawn, message, or schedule tools to prevent recursion
// and unsolicited outbound messages.
type subagentRegistry struct{ *tools.Registry }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		newProvider,
		newMessageBus,
		newSessionManager,
		newContextBuilder,
		newCompactor,
		newCronService,
		newMCPManager,
		newUniProtClient,
		newPredictor,
		newSubAgentToolRegistry,
		newFactory,
		newSubagentManager,
		newAgentToolRegistry,
		newAgentLoop,
	}
	for _, c := range constructors {
		if err := d.Provide(c); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		msgBus *bus.MessageBus,
		loop *agent.AgentLoop,
		cronSvc *cron.Service,
		reg agentRegistry,
	) {
		result = &Container{
			provider: provider,
			msgBus:   msgBus,
			loop:     loop,
			cronSvc:  cronSvc,
			registry: reg.Registry,
		}
	})
	return result, err
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	model := cfg.Agents.Defaults.Model
	result := cfg.MatchProvider(model)

	if result.Provider == nil && !isOAuthProvider(result.Name) {
		return nil, fmt.Errorf("no API key configured for model %q — edit %s", model, config.ConfigPath())
	}

	apiKey := ""
	apiBase := ""
	var extraHeaders map[string]string
	if result.Provider != nil {
		apiKey = result.Provider.APIKey
		apiBase = result.Provider.APIBase
		extraHeaders = result.Provider.ExtraHeaders
	}
	if apiBase == "" {
		apiBase = cfg.GetAPIBase(model)
	}
	return providers.New(providers.Params{
		APIKey:       apiKey,
		APIBase:      apiBase,
		ExtraHeaders: extraHeaders,
		DefaultModel: model,
		ProviderName: result.Name,
	}), nil
}

func isOAuthProvider(name string) bool {
	spec := providers.FindByName(name)
	return spec != nil && spec.IsOAuth
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(100)
}

func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	return session.NewManager(cfg.WorkspacePath())
}

func newContextBuilder(cfg *config.Config) *agent.ContextBuilder {
	return agent.NewContextBuilder(cfg.WorkspacePath(), "")
}

func newCompactor(
	cfg *config.Config,
	cb *agent.ContextBuilder,
	sessions *session.Manager,
	p schema.LLMProvider,
) *agent.MemoryCompactor {
	defs := cfg.Agents.Defaults
	return agent.NewCompactor(cb.Memory(), sessions, p, defs.Model, defs.MemoryWindow)
}

func newCronService(cfg *config.Config) *cron.Service {
	_ = cfg // cron store lives in the shared data dir, not the workspace
	return cron.NewService(config.DataDir() + "/cron/jobs.json")
}

func newMCPManager(cfg *config.Config) *mcp.Manager {
	return mcp.NewManager(cfg.Tools.MCPServers)
}

func newUniProtClient(cfg *config.Config) *uniprot.Client {
	base := strings.TrimSuffix(cfg.Tools.UniProt.BaseURL, "/")
	return uniprot.NewClient(base + "/search")
}

func newPredictor() *protein.Predictor {
	return protein.NewPredictor(nil)
}

func newSubAgentToolRegistry(cfg *config.Config, up *uniprot.Client, pred *protein.Predictor) (subagentRegistry, error) {
	workspace := cfg.WorkspacePath()
	allowedDir := ""
	if cfg.Tools.RestrictToWorkspace {
		allowedDir = workspace
	}

	registry, err := tools.NewRegistryBuilder().
		WithTool(tools.NewReadFileTool(workspace, allowedDir)).
		WithTool(tools.NewWriteFileTool(workspace, allowedDir)).
		WithTool(tools.NewEditFileTool(workspace, allowedDir)).
		WithTool(tools.NewExecTool(workspace, cfg.Tools.Exec.Timeout, cfg.Tools.RestrictToWorkspace)).
		WithTool(tools.NewGetProteinSequenceTool(up)).
		WithTool(tools.NewSearchProteinsTool(up)).
		WithTool(tools.NewPredictProteinFunctionTool(pred)).
		WithTool(tools.NewSearchLiteratureTool(cfg.Tools.Literature.BaseURL, cfg.Tools.Literature.MaxResults)).
		WithTool(tools.NewFetchWebpageTool(0)).
		Build()
	if err != nil {
		return subagentRegistry{}, fmt.Errorf("subagent tool registry: %w", err)
	}

	return subagentRegistry{registry}, nil
}

func newFactory(
	cfg *config.Config,
	p schema.LLMProvider,
	subReg subagentRegistry,
	mcpMgr *mcp.Manager,
) *agent.AgentFactory {
	defs := cfg.Agents.Defaults
	settings := schema.NewAgentSettings(defs.Model, defs.MaxToolIter, defs.Temperature, defs.MaxTokens, defs.MemoryWindow)

	// Subagents run with a tighter loop bound and no session history.
	subIter := defs.MaxToolIter
	if subIter > 15 {
		subIter = 15
	}
	subSettings := schema.NewAgentSettings(defs.Model, subIter, defs.Temperature, defs.MaxTokens, 0)

	return agent.NewFactory(p, settings, subSettings, subReg.Registry, mcpMgr, cfg.WorkspacePath())
}

func newSubagentManager(factory *agent.AgentFactory, b *bus.MessageBus) *agent.SubagentManager {
	return agent.NewSubagentManager(factory, b)
}

func newAgentToolRegistry(
	cfg *config.Config,
	b *bus.MessageBus,
	subMgr *agent.SubagentManager,
	cronSvc *cron.Service,
	cb *agent.ContextBuilder,
	up *uniprot.Client,
	pred *protein.Predictor,
) (agentRegistry, error) {
	workspace := cfg.WorkspacePath()
	allowedDir := ""
	if cfg.Tools.RestrictToWorkspace {
		allowedDir = workspace
	}

	registry, err := tools.NewRegistryBuilder().
		WithTool(tools.NewReadFileTool(workspace, allowedDir)).
		WithTool(tools.NewWriteFileTool(workspace, allowedDir)).
		WithTool(tools.NewEditFileTool(workspace, allowedDir)).
		WithTool(tools.NewListDirTool(workspace, allowedDir)).
		WithTool(tools.NewExecTool(workspace, cfg.Tools.Exec.Timeout, cfg.Tools.RestrictToWorkspace)).
		WithTool(tools.NewGetProteinSequenceTool(up)).
		WithTool(tools.NewSearchProteinsTool(up)).
		WithTool(tools.NewPredictProteinFunctionTool(pred)).
		WithTool(tools.NewSearchLiteratureTool(cfg.Tools.Literature.BaseURL, cfg.Tools.Literature.MaxResults)).
		WithTool(tools.NewFetchWebpageTool(0)).
		WithTool(tools.NewSaveMemoryTool(cb.Memory())).
		WithTool(tools.NewMessageTool(b)).
		WithTool(tools.NewSpawnTool(subMgr)).
		WithTool(tools.NewScheduleTool(cronSvc)).
		Build()
	if err != nil {
		return agentRegistry{}, fmt.Errorf("agent tool registry: %w", err)
	}

	return agentRegistry{registry}, nil
}

func newAgentLoop(
	b *bus.MessageBus,
	factory *agent.AgentFactory,
	cfg *config.Config,
	sessions *session.Manager,
	compactor *agent.MemoryCompactor,
	reg agentRegistry,
	subMgr *agent.SubagentManager,
	cb *agent.ContextBuilder,
) *agent.AgentLoop {
	defs := cfg.Agents.Defaults
	settings := schema.NewAgentSettings(defs.Model, defs.MaxToolIter, defs.Temperature, defs.MaxTokens, defs.MemoryWindow)
	return agent.NewAgentLoop(b, factory, settings, sessions, compactor, reg.Registry, subMgr, cb)
}
