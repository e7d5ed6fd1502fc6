package engine

import "reflect"

// GetSetting implements core.Runtime. Sources are tried in order: character
// secrets, character settings, settings["secrets"], then the process-wide
// SettingsSource. A falsy value falls through to the next source.
func (e *Engine) GetSetting(key string) any {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()

	c := e.character

	var candidates []any

	if v, ok := c.Secrets[key]; ok {
		candidates = append(candidates, v)
	}

	candidates = append(candidates, c.Settings[key])

	switch nested := c.Settings["secrets"].(type) {
	case map[string]any:
		candidates = append(candidates, nested[key])
	case map[string]string:
		if v, ok := nested[key]; ok {
			candidates = append(candidates, v)
		}
	}

	for _, v := range candidates {
		if !falsy(v) {
			return normalizeSetting(v)
		}
	}

	if e.settings != nil {
		return normalizeSetting(e.settings.Get(key))
	}

	return nil
}

// SetSetting stores value in the character secrets (strings only) or
// settings.
func (e *Engine) SetSetting(key string, value any, secret bool) {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()

	if s, ok := value.(string); ok && secret {
		e.character.Secrets[key] = s
		return
	}

	e.character.Settings[key] = value
}

func normalizeSetting(v any) any {
	if s, ok := v.(string); ok {
		switch s {
		case "true":
			return true
		case "false":
			return false
		}
	}

	if falsy(v) {
		return nil
	}

	return v
}

// falsy reports nil, false, empty strings and numeric zero.
func falsy(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.String:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}
