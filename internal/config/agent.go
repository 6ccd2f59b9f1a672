package config

import (
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentName         = "MUSE_AGENT_NAME"
	EnvAgentProviderName = "MUSE_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "MUSE_AGENT_BASE_URL"
	EnvAgentToken        = "MUSE_AGENT_TOKEN"
	EnvAgentDeployment   = "MUSE_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "MUSE_AGENT_API_VERSION"
	EnvAgentAuthType     = "MUSE_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "MUSE_AGENT_MODEL_NAME"
)

// FinalizeAgent finalizes the idea-writing agent. go-agents supplies the
// defaults, MUSE_AGENT_* variables override them, then the result is validated.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults

	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}

	for dst, name := range map[*string]string{
		&c.Name:             EnvAgentName,
		&c.Provider.Name:    EnvAgentProviderName,
		&c.Provider.BaseURL: EnvAgentBaseURL,
		&c.Model.Name:       EnvAgentModelName,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	for key, name := range map[string]string{
		"token":       EnvAgentToken,
		"deployment":  EnvAgentDeployment,
		"api_version": EnvAgentAPIVersion,
		"auth_type":   EnvAgentAuthType,
	} {
		if v := os.Getenv(name); v != "" {
			c.Provider.Options[key] = v
		}
	}

	switch {
	case c.Name == "":
		return fmt.Errorf("name required")
	case c.Provider.Name == "":
		return fmt.Errorf("provider name required")
	case c.Model.Name == "":
		return fmt.Errorf("model name required")
	}
	return nil
}
