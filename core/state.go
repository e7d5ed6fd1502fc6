package core

// ProviderResult is the output of a single provider invocation.
type ProviderResult struct {
	Values map[string]any `json:"values,omitempty"`
	Text   string         `json:"text,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// ProviderOutput pairs a provider name with its result.
type ProviderOutput struct {
	Name   string         `json:"name"`
	Result ProviderResult `json:"result"`
}

// ProviderOutputs is the ordered per-provider map stored under
// State.Data["providers"]. Order is insertion order.
type ProviderOutputs []ProviderOutput

// Get returns the result recorded for name.
func (p ProviderOutputs) Get(name string) (ProviderResult, bool) {
	for _, o := range p {
		if o.Name == name {
			return o.Result, true
		}
	}

	return ProviderResult{}, false
}

// Set replaces the result for name in place, or appends it when absent.
func (p ProviderOutputs) Set(name string, r ProviderResult) ProviderOutputs {
	for i := range p {
		if p[i].Name == name {
			out := make(ProviderOutputs, len(p))
			copy(out, p)
			out[i].Result = r

			return out
		}
	}

	out := make(ProviderOutputs, len(p), len(p)+1)
	copy(out, p)

	return append(out, ProviderOutput{Name: name, Result: r})
}

// Names lists the recorded provider names in order.
func (p ProviderOutputs) Names() []string {
	names := make([]string, len(p))
	for i, o := range p {
		names[i] = o.Name
	}

	return names
}

// State is the per-turn snapshot assembled from provider output. Values always
// holds a "providers" key with the concatenated text; Data holds the raw
// per-provider output under "providers".
type State struct {
	Values map[string]any `json:"values"`
	Data   map[string]any `json:"data"`
	Text   string         `json:"text"`
}

// NewState returns an empty snapshot.
func NewState() *State {
	return &State{Values: map[string]any{}, Data: map[string]any{}}
}

// Providers returns the per-provider output recorded in the snapshot.
func (s *State) Providers() ProviderOutputs {
	if s == nil || s.Data == nil {
		return nil
	}

	p, _ := s.Data["providers"].(ProviderOutputs)

	return p
}

// Clone returns a copy whose top-level maps can be mutated without affecting s.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}

	c := &State{Values: make(map[string]any, len(s.Values)), Data: make(map[string]any, len(s.Data)), Text: s.Text}
	for k, v := range s.Values {
		c.Values[k] = v
	}

	for k, v := range s.Data {
		c.Data[k] = v
	}

	return c
}
