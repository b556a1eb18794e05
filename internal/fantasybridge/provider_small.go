//go:build mcpagent_small

package fantasybridge

import "charm.land/fantasy"

// The small build only links the openai-compatible provider.
var providers = map[string]func(Config) (fantasy.Provider, error){}
