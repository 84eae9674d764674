package llm

import "fmt"

// New picks an implementation by provider name.
func New(cfg *Settings) (Client, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIFromSettings(cfg)
	case "groq", "deepseek":
		// 兼容 OpenAI 接口的服务，需要填写 base_url。
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider %s requires base_url (OpenAI-compatible endpoint)", cfg.Provider)
		}
		return NewOpenAIFromSettings(cfg)
	case "anthropic":
		return NewAnthropicFromSettings(cfg)
	case "mock":
		return Mock{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
