// Package providers implements the LLM backends: a registry of provider
// specs plus a direct-HTTP client covering OpenAI-compatible endpoints and
// the Anthropic Messages API.
package providers

import "strings"

// ModelOverride applies extra parameters for a specific model pattern.
type ModelOverride struct {
	Pattern   string         // case-insensitive substring to match in model name
	Overrides map[string]any // parameters to merge into the request body
}

// ProviderSpec is the metadata record for one LLM provider.
type ProviderSpec struct {
	// Identity
	Name        string   // config field name, e.g. "deepseek"
	Keywords    []string // model-name keywords for matching (lowercase)
	EnvKey      string   // env var carrying the API key
	DisplayName string   // shown in `helixbot status`

	// Model prefixing (used in resolveModel)
	RoutePrefix  string   // prefix recognised in model names for routing
	SkipPrefixes []string // don't add prefix if model already starts with one of these

	// Gateway / local detection
	IsGateway           bool   // routes any model (OpenRouter, AiHubMix, …)
	IsLocal             bool   // local deployment (vLLM)
	DetectByKeyPrefix   string // match api_key prefix to identify gateway
	DetectByBaseKeyword string // match substring in api_base URL
	DefaultAPIBase      string // fallback base URL when none is configured

	// Gateway behaviour
	StripModelPrefix bool // strip "provider/" before using the model name

	// Per-model parameter overrides
	ModelOverrides []ModelOverride

	// OAuth-based (no API key; use device flow instead)
	IsOAuth bool

	// Provider supports cache_control on content blocks (Anthropic prompt caching)
	SupportsPromptCaching bool
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToTitle(s.Name[:1]) + s.Name[1:]
}

// ---------------------------------------------------------------------------
// PROVIDERS — the registry.  Order = match priority.
// ---------------------------------------------------------------------------

var PROVIDERS = []ProviderSpec{
	{
		Name:        "custom",
		Keywords:    nil,
		EnvKey:      "",
		DisplayName: "Custom",
	},
	{
		Name:                  "openrouter",
		Keywords:              []string{"openrouter"},
		EnvKey:                "OPENROUTER_API_KEY",
		DisplayName:           "OpenRouter",
		RoutePrefix:           "openrouter",
		IsGateway:             true,
		DetectByKeyPrefix:     "sk-or-",
		DetectByBaseKeyword:   "openrouter",
		DefaultAPIBase:        "https://openrouter.ai/api/v1",
		SupportsPromptCaching: true,
	},
	{
		Name:                "aihubmix",
		Keywords:            []string{"aihubmix"},
		EnvKey:              "AIHUBMIX_API_KEY",
		DisplayName:         "AiHubMix",
		RoutePrefix:         "openai",
		IsGateway:           true,
		DetectByBaseKeyword: "aihubmix",
		DefaultAPIBase:      "https://aihubmix.com/v1",
		StripModelPrefix:    true,
	},
	{
		Name:                "siliconflow",
		Keywords:            []string{"siliconflow"},
		EnvKey:              "SILICONFLOW_API_KEY",
		DisplayName:         "SiliconFlow",
		RoutePrefix:         "openai",
		IsGateway:           true,
		DetectByBaseKeyword: "siliconflow",
		DefaultAPIBase:      "https://api.siliconflow.cn/v1",
	},
	{
		Name:                "volcengine",
		Keywords:            []string{"volcengine", "volces", "ark"},
		EnvKey:              "ARK_API_KEY",
		DisplayName:         "VolcEngine",
		RoutePrefix:         "volcengine",
		IsGateway:           true,
		DetectByBaseKeyword: "volces",
		DefaultAPIBase:      "https://ark.cn-beijing.volces.com/api/v3",
	},
	{
		Name:                  "anthropic",
		Keywords:              []string{"anthropic", "claude"},
		EnvKey:                "ANTHROPIC_API_KEY",
		DisplayName:           "Anthropic",
		DefaultAPIBase:        "https://api.anthropic.com/v1",
		SupportsPromptCaching: true,
	},
	{
		Name:        "openai",
		Keywords:    []string{"openai", "gpt"},
		EnvKey:      "OPENAI_API_KEY",
		DisplayName: "OpenAI",
	},
	{
		Name:         "deepseek",
		Keywords:     []string{"deepseek"},
		EnvKey:       "DEEPSEEK_API_KEY",
		DisplayName:  "DeepSeek",
		RoutePrefix:  "deepseek",
		SkipPrefixes: []string{"deepseek/"},
	},
	{
		Name:         "gemini",
		Keywords:     []string{"gemini"},
		EnvKey:       "GEMINI_API_KEY",
		DisplayName:  "Gemini",
		RoutePrefix:  "gemini",
		SkipPrefixes: []string{"gemini/"},
	},
	{
		Name:           "moonshot",
		Keywords:       []string{"moonshot", "kimi"},
		EnvKey:         "MOONSHOT_API_KEY",
		DisplayName:    "Moonshot",
		RoutePrefix:    "moonshot",
		SkipPrefixes:   []string{"moonshot/", "openrouter/"},
		DefaultAPIBase: "https://api.moonshot.ai/v1",
		ModelOverrides: []ModelOverride{
			{Pattern: "kimi-k2.5", Overrides: map[string]any{"temperature": 1.0}},
		},
	},
	{
		Name:        "vllm",
		Keywords:    []string{"vllm"},
		EnvKey:      "HOSTED_VLLM_API_KEY",
		DisplayName: "vLLM/Local",
		RoutePrefix: "hosted_vllm",
		IsLocal:     true,
	},
	{
		Name:         "groq",
		Keywords:     []string{"groq"},
		EnvKey:       "GROQ_API_KEY",
		DisplayName:  "Groq",
		RoutePrefix:  "groq",
		SkipPrefixes: []string{"groq/"},
	},
}

// FindByModel matches a standard provider by model-name keyword (case-insensitive).
// Skips gateways and local providers — those are matched by api_key/api_base.
func FindByModel(model string) *ProviderSpec {
	modelLower := strings.ToLower(model)
	modelNorm := strings.ReplaceAll(modelLower, "-", "_")
	modelPrefix, _, _ := strings.Cut(modelLower, "/")
	normalizedPrefix := strings.ReplaceAll(modelPrefix, "-", "_")

	// Collect non-gateway, non-local specs.
	var std []int
	for i := range PROVIDERS {
		if !PROVIDERS[i].IsGateway && !PROVIDERS[i].IsLocal {
			std = append(std, i)
		}
	}

	// Prefer explicit provider prefix.
	for _, i := range std {
		spec := &PROVIDERS[i]
		if modelPrefix != "" && normalizedPrefix == spec.Name {
			return spec
		}
	}

	// Keyword match.
	for _, i := range std {
		spec := &PROVIDERS[i]
		for _, kw := range spec.Keywords {
			kw = strings.ToLower(kw)
			kwNorm := strings.ReplaceAll(kw, "-", "_")
			if strings.Contains(modelLower, kw) || strings.Contains(modelNorm, kwNorm) {
				return spec
			}
		}
	}
	return nil
}

// FindGateway detects the gateway or local provider.
// Priority: (1) explicit provider_name, (2) api_key prefix, (3) api_base keyword.
func FindGateway(providerName, apiKey, apiBase string) *ProviderSpec {
	// Direct match by config key.
	if providerName != "" {
		if s := FindByName(providerName); s != nil && (s.IsGateway || s.IsLocal) {
			return s
		}
	}
	// Auto-detect by api_key prefix / api_base keyword.
	for i := range PROVIDERS {
		spec := &PROVIDERS[i]
		if spec.DetectByKeyPrefix != "" && strings.HasPrefix(apiKey, spec.DetectByKeyPrefix) {
			return spec
		}
		if spec.DetectByBaseKeyword != "" && strings.Contains(apiBase, spec.DetectByBaseKeyword) {
			return spec
		}
	}
	return nil
}

// FindByName returns the ProviderSpec whose Name equals name.
func FindByName(name string) *ProviderSpec {
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}
