// Package bootstrap provides the default providers and actions that make a
// runtime usable without further plugins.
package bootstrap

import "github.com/hupe1980/plugmesh/core"

// PluginName is the catalog name of the bootstrap plugin.
const PluginName = "bootstrap"

// Provider names.
const (
	ProviderCharacter      = "CHARACTER"
	ProviderTime           = "TIME"
	ProviderRecentMessages = "RECENT_MESSAGES"
	ProviderActions        = "ACTIONS"
	ProviderEvaluators     = "EVALUATORS"
	ProviderKnowledge      = "KNOWLEDGE"
)

// Action names.
const (
	ActionReply  = "REPLY"
	ActionIgnore = "IGNORE"
	ActionNone   = "NONE"
)

// Plugin returns the bootstrap plugin.
func Plugin() core.Plugin {
	return core.Plugin{
		Name:        PluginName,
		Description: "Default providers and actions",
		Providers: []core.Provider{
			CharacterProvider(),
			TimeProvider(),
			RecentMessagesProvider(DefaultRecentMessagesCount),
			ActionsProvider(),
			EvaluatorsProvider(),
			KnowledgeProvider(),
		},
		Actions: []core.Action{
			ReplyAction(),
			IgnoreAction(),
			NoneAction(),
		},
	}
}
