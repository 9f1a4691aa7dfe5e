// Package config defines the configuration schema for helixbot, loaded from
// ~/.helixbot/config.json with .env / environment overrides for credentials.
package config

import (
	"os"
	"path/filepath"
)

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	Custom      ProviderConfig `json:"custom"`
	Anthropic   ProviderConfig `json:"anthropic"`
	OpenAI      ProviderConfig `json:"openai"`
	OpenRouter  ProviderConfig `json:"openrouter"`
	DeepSeek    ProviderConfig `json:"deepseek"`
	Groq        ProviderConfig `json:"groq"`
	VLLM        ProviderConfig `json:"vllm"`
	Gemini      ProviderConfig `json:"gemini"`
	Moonshot    ProviderConfig `json:"moonshot"`
	AiHubMix    ProviderConfig `json:"aihubmix"`
	SiliconFlow ProviderConfig `json:"siliconflow"`
	VolcEngine  ProviderConfig `json:"volcengine"`
}

// AgentDefaults holds default values for agent behaviour.
type AgentDefaults struct {
	Workspace    string  `json:"workspace"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"maxTokens"`
	Temperature  float64 `json:"temperature"`
	MaxToolIter  int     `json:"maxToolIterations"`
	MemoryWindow int     `json:"memoryWindow"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Workspace:    "~/.helixbot/workspace",
		Model:        "gpt-4o-mini",
		MaxTokens:    8192,
		Temperature:  0.7,
		MaxToolIter:  20,
		MemoryWindow: 50,
	}
}

// AgentsConfig wraps agent defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

func defaultAgentsConfig() AgentsConfig {
	return AgentsConfig{Defaults: defaultAgentDefaults()}
}

// ---- Channel configs -------------------------------------------------------

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled        bool     `json:"enabled"`
	Token          string   `json:"token"`
	AllowFrom      []string `json:"allowFrom"`
	ReplyToMessage bool     `json:"replyToMessage"`
}

func defaultTelegramConfig() TelegramConfig {
	return TelegramConfig{AllowFrom: []string{}}
}

// SlackDMConfig controls direct-message behaviour in Slack.
type SlackDMConfig struct {
	Enabled   bool     `json:"enabled"`
	Policy    string   `json:"policy"` // "open" or "allowlist"
	AllowFrom []string `json:"allowFrom"`
}

func defaultSlackDMConfig() SlackDMConfig {
	return SlackDMConfig{Enabled: true, Policy: "open", AllowFrom: []string{}}
}

// SlackConfig configures the Slack channel (Socket Mode).
type SlackConfig struct {
	Enabled        bool          `json:"enabled"`
	BotToken       string        `json:"botToken"`
	AppToken       string        `json:"appToken"`
	ReplyInThread  bool          `json:"replyInThread"`
	ReactEmoji     string        `json:"reactEmoji"`
	GroupPolicy    string        `json:"groupPolicy"` // "open", "mention", or "allowlist"
	GroupAllowFrom []string      `json:"groupAllowFrom"`
	DM             SlackDMConfig `json:"dm"`
}

func defaultSlackConfig() SlackConfig {
	return SlackConfig{
		ReplyInThread:  true,
		ReactEmoji:     "eyes",
		GroupPolicy:    "mention",
		GroupAllowFrom: []string{},
		DM:             defaultSlackDMConfig(),
	}
}

// WebConfig configures the WebSocket chat channel served by the gateway.
type WebConfig struct {
	Enabled   bool     `json:"enabled"`
	Path      string   `json:"path"`
	AllowFrom []string `json:"allowFrom"`
}

func defaultWebConfig() WebConfig {
	return WebConfig{Enabled: true, Path: "/ws", AllowFrom: []string{}}
}

// ChannelsConfig groups all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	Web      WebConfig      `json:"web"`
}

func defaultChannelsConfig() ChannelsConfig {
	return ChannelsConfig{
		Telegram: defaultTelegramConfig(),
		Slack:    defaultSlackConfig(),
		Web:      defaultWebConfig(),
	}
}

// ---- Tool configs ----------------------------------------------------------

// UniProtConfig configures the UniProt REST client.
type UniProtConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func defaultUniProtConfig() UniProtConfig {
	return UniProtConfig{
		BaseURL:        "https://rest.uniprot.org/uniprotkb",
		TimeoutSeconds: 20,
	}
}

// LiteratureConfig configures the Europe PMC literature-search tool.
type LiteratureConfig struct {
	BaseURL    string `json:"baseUrl"`
	MaxResults int    `json:"maxResults"`
}

func defaultLiteratureConfig() LiteratureConfig {
	return LiteratureConfig{
		BaseURL:    "https://www.ebi.ac.uk/europepmc/webservices/rest",
		MaxResults: 5,
	}
}

// ExecToolConfig configures the shell-exec tool.
type ExecToolConfig struct {
	Timeout int `json:"timeout"` // seconds
}

func defaultExecToolConfig() ExecToolConfig {
	return ExecToolConfig{Timeout: 60}
}

// MCPServerConfig describes one MCP server connection (stdio or HTTP).
type MCPServerConfig struct {
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeoutSeconds"` // per-call timeout, default 30
}

// ToolsConfig groups all tool-level settings.
type ToolsConfig struct {
	UniProt             UniProtConfig              `json:"uniprot"`
	Literature          LiteratureConfig           `json:"literature"`
	Exec                ExecToolConfig             `json:"exec"`
	RestrictToWorkspace bool                       `json:"restrictToWorkspace"`
	MCPServers          map[string]MCPServerConfig `json:"mcpServers"`
}

func defaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		UniProt:    defaultUniProtConfig(),
		Literature: defaultLiteratureConfig(),
		Exec:       defaultExecToolConfig(),
		MCPServers: map[string]MCPServerConfig{},
	}
}

// GatewayConfig holds gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{Host: "0.0.0.0", Port: 18790}
}

// WatchConfig controls the periodic watchlist re-check service.
type WatchConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

func defaultWatchConfig() WatchConfig {
	return WatchConfig{Enabled: true, IntervalMinutes: 30}
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.helixbot/config.json.
type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Gateway   GatewayConfig   `json:"gateway"`
	Tools     ToolsConfig     `json:"tools"`
	Watch     WatchConfig     `json:"watch"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agents:    defaultAgentsConfig(),
		Channels:  defaultChannelsConfig(),
		Providers: ProvidersConfig{},
		Gateway:   defaultGatewayConfig(),
		Tools:     defaultToolsConfig(),
		Watch:     defaultWatchConfig(),
	}
}

// WorkspacePath returns the expanded absolute path to the agent workspace.
func (c *Config) WorkspacePath() string {
	ws := c.Agents.Defaults.Workspace
	if ws == "" {
		ws = "~/.helixbot/workspace"
	}
	if len(ws) >= 2 && ws[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			ws = filepath.Join(home, ws[2:])
		}
	}
	return ws
}

// ProviderByName returns a pointer to the ProviderConfig field matching the
// given registry name (e.g. "openrouter", "anthropic"). Returns nil if unknown.
func (c *Config) ProviderByName(name string) *ProviderConfig {
	switch name {
	case "custom":
		return &c.Providers.Custom
	case "anthropic":
		return &c.Providers.Anthropic
	case "openai":
		return &c.Providers.OpenAI
	case "openrouter":
		return &c.Providers.OpenRouter
	case "deepseek":
		return &c.Providers.DeepSeek
	case "groq":
		return &c.Providers.Groq
	case "vllm":
		return &c.Providers.VLLM
	case "gemini":
		return &c.Providers.Gemini
	case "moonshot":
		return &c.Providers.Moonshot
	case "aihubmix":
		return &c.Providers.AiHubMix
	case "siliconflow":
		return &c.Providers.SiliconFlow
	case "volcengine":
		return &c.Providers.VolcEngine
	}
	return nil
}
