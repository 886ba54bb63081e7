package gemini

import (
	"github.com/oljefondvakt/fundwatch/internal/config"
	"github.com/oljefondvakt/fundwatch/internal/generation"
)

// ShallowProfile is the fast buffered profile used for batch screening.
func ShallowProfile(cfg config.LLMConfig) generation.Profile {
	return generation.Profile{
		Name:    generation.ProfileShallow,
		Model:   cfg.ShallowModel,
		Timeout: cfg.ShallowTimeout,
	}
}

// DeepProfile is the streamed profile used for single-company deep reports.
func DeepProfile(cfg config.LLMConfig) generation.Profile {
	return generation.Profile{
		Name:    generation.ProfileDeep,
		Model:   cfg.DeepModel,
		Timeout: cfg.DeepTimeout,
		Stream:  true,
	}
}
