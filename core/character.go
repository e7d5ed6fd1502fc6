package core

// Character is the agent configuration a runtime is constructed from. It is
// owned by the caller and treated as read-only by the runtime, except through
// explicit setting mutation.
type Character struct {
	ID        string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string            `json:"name" yaml:"name"`
	Username  string            `json:"username,omitempty" yaml:"username,omitempty"`
	Bio       []string          `json:"bio,omitempty" yaml:"bio,omitempty"`
	System    string            `json:"system,omitempty" yaml:"system,omitempty"`
	Plugins   []string          `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	Knowledge []string          `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
	Settings  map[string]any    `json:"settings,omitempty" yaml:"settings,omitempty"`
	Secrets   map[string]string `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	Templates map[string]string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// Template returns the named prompt template or fallback if the character
// does not override it.
func (c *Character) Template(name, fallback string) string {
	if c == nil {
		return fallback
	}

	if t, ok := c.Templates[name]; ok && t != "" {
		return t
	}

	return fallback
}
