package config

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/caarlos0/go-shellwords"

	"github.com/dotcommander/mcpagent/internal/errs"
)

var defaultKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"google":     "GOOGLE_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
}

// keyless APIs run locally and accept requests without a key.
var keyless = map[string]bool{
	"ollama": true,
}

// DefaultKeyEnv returns the environment variable conventionally holding the
// key for api.
func DefaultKeyEnv(api string) string {
	if name, ok := defaultKeyEnv[api]; ok {
		return name
	}
	return strings.ToUpper(strings.ReplaceAll(api, "-", "_")) + "_API_KEY"
}

// ResolveAPIKey finds the model API key. Lookup order: api-key, api-key-env,
// api-key-cmd, then the api's conventional variable. environ is consulted
// instead of the process environment.
func (m Model) ResolveAPIKey(ctx context.Context, environ map[string]string) (string, error) {
	key := m.APIKey
	if key == "" && m.APIKeyEnv != "" && m.APIKeyCmd == "" {
		key = environ[m.APIKeyEnv]
	}
	if key == "" && m.APIKeyCmd != "" {
		args, err := shellwords.Parse(m.APIKeyCmd)
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Failed to parse api-key-cmd"}
		}
		if len(args) == 0 {
			return "", errs.Error{Reason: "api-key-cmd is empty"}
		}
		// #nosec G204 -- api-key-cmd is explicitly configured by the local user.
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Cannot exec api-key-cmd"}
		}
		key = strings.TrimSpace(string(out))
	}
	defaultEnv := DefaultKeyEnv(m.API)
	if key == "" {
		key = environ[defaultEnv]
	}
	if key != "" || keyless[m.API] {
		return key, nil
	}
	return "", errs.Error{
		Reason: fmt.Sprintf("%s required; set %s or model.api-key in the settings file.", defaultEnv, defaultEnv),
		Err:    errs.UserErrorf("Edit the settings with: mcpagent config edit"),
	}
}
