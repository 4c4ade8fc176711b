package keycode

import "fmt"

// Modifier is one of the eight keys that qualify another key's meaning.
// Left and right variants are always distinguished.
type Modifier int

const (
	LeftShift Modifier = iota
	RightShift
	LeftCtrl
	RightCtrl
	LeftAlt
	RightAlt
	LeftMeta
	RightMeta
)

var modifierNames = map[Modifier]string{
	LeftShift:  "LEFTSHIFT",
	RightShift: "RIGHTSHIFT",
	LeftCtrl:   "LEFTCTRL",
	RightCtrl:  "RIGHTCTRL",
	LeftAlt:    "LEFTALT",
	RightAlt:   "RIGHTALT",
	LeftMeta:   "LEFTMETA",
	RightMeta:  "RIGHTMETA",
}

var modifierByName map[string]Modifier

// modifierKeys is the partial function mapping the eight modifier keys
// to their Modifier tag; all other keys map to nothing.
var modifierKeys = map[Key]Modifier{
	KeyLeftShift:  LeftShift,
	KeyRightShift: RightShift,
	KeyLeftCtrl:   LeftCtrl,
	KeyRightCtrl:  RightCtrl,
	KeyLeftAlt:    LeftAlt,
	KeyRightAlt:   RightAlt,
	KeyLeftMeta:   LeftMeta,
	KeyRightMeta:  RightMeta,
}

var keyForModifier map[Modifier]Key

func init() {
	modifierByName = make(map[string]Modifier, len(modifierNames))
	for m, name := range modifierNames {
		modifierByName[name] = m
	}

	keyForModifier = make(map[Modifier]Key, len(modifierKeys))
	for k, m := range modifierKeys {
		keyForModifier[m] = k
	}
}

func (m Modifier) String() string {
	if name, ok := modifierNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Modifier(%d)", int(m))
}

// ParseModifier resolves a config MODIFIER token, case insensitive.
func ParseModifier(name string) (Modifier, error) {
	if m, ok := modifierByName[normalizeName(name)]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown modifier name %q", name)
}

// ModifierForKey is the partial function Key -> Modifier. The bool
// result is false for every key that isn't one of the eight modifiers.
func ModifierForKey(k Key) (Modifier, bool) {
	m, ok := modifierKeys[k]
	return m, ok
}

// IsModifier reports whether k is one of the eight modifier keys.
func IsModifier(k Key) bool {
	_, ok := modifierKeys[k]
	return ok
}

// KeyForModifier is the inverse of ModifierForKey.
func KeyForModifier(m Modifier) Key {
	return keyForModifier[m]
}
