// Package keycode defines the canonical key identifiers, the modifier
// taxonomy, and the event ordering that every other package in this
// module builds on.
package keycode

import "fmt"

// Key is a Linux evdev key code (see linux/input-event-codes.h). Two
// keys compare equal iff their underlying code is equal; ordering is by
// numeric code.
type Key uint16

// RESERVED matches no real key. It is the sentinel used to seed
// Engine.lastKey before any physical event has been seen.
const RESERVED Key = 0

// Common key codes from linux/input-event-codes.h. Not every code the
// kernel defines is listed here, but every key a keymap rule is likely
// to name is.
const (
	KeyEsc        Key = 1
	Key1          Key = 2
	Key2          Key = 3
	Key3          Key = 4
	Key4          Key = 5
	Key5          Key = 6
	Key6          Key = 7
	Key7          Key = 8
	Key8          Key = 9
	Key9          Key = 10
	Key0          Key = 11
	KeyMinus      Key = 12
	KeyEqual      Key = 13
	KeyBackspace  Key = 14
	KeyTab        Key = 15
	KeyQ          Key = 16
	KeyW          Key = 17
	KeyE          Key = 18
	KeyR          Key = 19
	KeyT          Key = 20
	KeyY          Key = 21
	KeyU          Key = 22
	KeyI          Key = 23
	KeyO          Key = 24
	KeyP          Key = 25
	KeyLeftBrace  Key = 26
	KeyRightBrace Key = 27
	KeyEnter      Key = 28
	KeyLeftCtrl   Key = 29
	KeyA          Key = 30
	KeyS          Key = 31
	KeyD          Key = 32
	KeyF          Key = 33
	KeyG          Key = 34
	KeyH          Key = 35
	KeyJ          Key = 36
	KeyK          Key = 37
	KeyL          Key = 38
	KeySemicolon  Key = 39
	KeyApostrophe Key = 40
	KeyGrave      Key = 41
	KeyLeftShift  Key = 42
	KeyBackslash  Key = 43
	KeyZ          Key = 44
	KeyX          Key = 45
	KeyC          Key = 46
	KeyV          Key = 47
	KeyB          Key = 48
	KeyN          Key = 49
	KeyM          Key = 50
	KeyComma      Key = 51
	KeyDot        Key = 52
	KeySlash      Key = 53
	KeyRightShift Key = 54
	KeyKpAsterisk Key = 55
	KeyLeftAlt    Key = 56
	KeySpace      Key = 57
	KeyCapsLock   Key = 58
	KeyF1         Key = 59
	KeyF2         Key = 60
	KeyF3         Key = 61
	KeyF4         Key = 62
	KeyF5         Key = 63
	KeyF6         Key = 64
	KeyF7         Key = 65
	KeyF8         Key = 66
	KeyF9         Key = 67
	KeyF10        Key = 68
	KeyNumLock    Key = 69
	KeyScrollLock Key = 70
	KeyKp7        Key = 71
	KeyKp8        Key = 72
	KeyKp9        Key = 73
	KeyKpMinus    Key = 74
	KeyKp4        Key = 75
	KeyKp5        Key = 76
	KeyKp6        Key = 77
	KeyKpPlus     Key = 78
	KeyKp1        Key = 79
	KeyKp2        Key = 80
	KeyKp3        Key = 81
	KeyKp0        Key = 82
	KeyKpDot      Key = 83
	KeyF11        Key = 87
	KeyF12        Key = 88
	KeyKpEnter    Key = 96
	KeyRightCtrl  Key = 97
	KeyKpSlash    Key = 98
	KeySysrq      Key = 99
	KeyRightAlt   Key = 100
	KeyHome       Key = 102
	KeyUp         Key = 103
	KeyPageUp     Key = 104
	KeyLeft       Key = 105
	KeyRight      Key = 106
	KeyEnd        Key = 107
	KeyDown       Key = 108
	KeyPageDown   Key = 109
	KeyInsert     Key = 110
	KeyDelete     Key = 111
	KeyKpEqual    Key = 117
	KeyPause      Key = 119
	Key102nd      Key = 86
	KeyCompose    Key = 127
	KeyLeftMeta   Key = 125
	KeyRightMeta  Key = 126
	KeyMenu       Key = 139
)

// names holds the canonical KEY_* suffix (e.g. "A", "LEFTCTRL", "102ND")
// for every key the config format is expected to reference.
var names = map[Key]string{
	KeyEsc:        "ESC",
	Key1:          "1",
	Key2:          "2",
	Key3:          "3",
	Key4:          "4",
	Key5:          "5",
	Key6:          "6",
	Key7:          "7",
	Key8:          "8",
	Key9:          "9",
	Key0:          "0",
	KeyMinus:      "MINUS",
	KeyEqual:      "EQUAL",
	KeyBackspace:  "BACKSPACE",
	KeyTab:        "TAB",
	KeyQ:          "Q",
	KeyW:          "W",
	KeyE:          "E",
	KeyR:          "R",
	KeyT:          "T",
	KeyY:          "Y",
	KeyU:          "U",
	KeyI:          "I",
	KeyO:          "O",
	KeyP:          "P",
	KeyLeftBrace:  "LEFTBRACE",
	KeyRightBrace: "RIGHTBRACE",
	KeyEnter:      "ENTER",
	KeyLeftCtrl:   "LEFTCTRL",
	KeyA:          "A",
	KeyS:          "S",
	KeyD:          "D",
	KeyF:          "F",
	KeyG:          "G",
	KeyH:          "H",
	KeyJ:          "J",
	KeyK:          "K",
	KeyL:          "L",
	KeySemicolon:  "SEMICOLON",
	KeyApostrophe: "APOSTROPHE",
	KeyGrave:      "GRAVE",
	KeyLeftShift:  "LEFTSHIFT",
	KeyBackslash:  "BACKSLASH",
	KeyZ:          "Z",
	KeyX:          "X",
	KeyC:          "C",
	KeyV:          "V",
	KeyB:          "B",
	KeyN:          "N",
	KeyM:          "M",
	KeyComma:      "COMMA",
	KeyDot:        "DOT",
	KeySlash:      "SLASH",
	KeyRightShift: "RIGHTSHIFT",
	KeyKpAsterisk: "KPASTERISK",
	KeyLeftAlt:    "LEFTALT",
	KeySpace:      "SPACE",
	KeyCapsLock:   "CAPSLOCK",
	KeyF1:         "F1",
	KeyF2:         "F2",
	KeyF3:         "F3",
	KeyF4:         "F4",
	KeyF5:         "F5",
	KeyF6:         "F6",
	KeyF7:         "F7",
	KeyF8:         "F8",
	KeyF9:         "F9",
	KeyF10:        "F10",
	KeyNumLock:    "NUMLOCK",
	KeyScrollLock: "SCROLLLOCK",
	KeyKp7:        "KP7",
	KeyKp8:        "KP8",
	KeyKp9:        "KP9",
	KeyKpMinus:    "KPMINUS",
	KeyKp4:        "KP4",
	KeyKp5:        "KP5",
	KeyKp6:        "KP6",
	KeyKpPlus:     "KPPLUS",
	KeyKp1:        "KP1",
	KeyKp2:        "KP2",
	KeyKp3:        "KP3",
	KeyKp0:        "KP0",
	KeyKpDot:      "KPDOT",
	KeyF11:        "F11",
	KeyF12:        "F12",
	KeyKpEnter:    "KPENTER",
	KeyRightCtrl:  "RIGHTCTRL",
	KeyKpSlash:    "KPSLASH",
	KeySysrq:      "SYSRQ",
	KeyRightAlt:   "RIGHTALT",
	KeyHome:       "HOME",
	KeyUp:         "UP",
	KeyPageUp:     "PAGEUP",
	KeyLeft:       "LEFT",
	KeyRight:      "RIGHT",
	KeyEnd:        "END",
	KeyDown:       "DOWN",
	KeyPageDown:   "PAGEDOWN",
	KeyInsert:     "INSERT",
	KeyDelete:     "DELETE",
	KeyKpEqual:    "KPEQUAL",
	KeyPause:      "PAUSE",
	Key102nd:      "102ND",
	KeyCompose:    "COMPOSE",
	KeyLeftMeta:   "LEFTMETA",
	KeyRightMeta:  "RIGHTMETA",
	KeyMenu:       "MENU",
}

var byName map[string]Key

func init() {
	byName = make(map[string]Key, len(names))
	for code, name := range names {
		byName[name] = code
	}
}

// String returns the KEY_* suffix for k, or a numeric fallback for
// codes this module doesn't have a name for.
func (k Key) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("KEY_%d", uint16(k))
}

// ParseKey resolves a config KEYNAME (the KEY_* suffix, case
// insensitive) to its Key.
func ParseKey(name string) (Key, error) {
	if k, ok := byName[normalizeName(name)]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown key name %q", name)
}

func normalizeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
