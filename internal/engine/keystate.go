package engine

import (
	"github.com/tadosappo/nasskan/internal/keycode"
	"github.com/tadosappo/nasskan/internal/rule"
)

type keyStateKind uint8

const (
	kindPassthru keyStateKind = iota
	kindRemapped
)

// keyState is the tagged union of per-key state: a physical key
// currently held is either flowing through unchanged (Passthru) or
// governed by a rule (Remapped). It is never both, and
// equality/ordering on it is purely structural.
type keyState struct {
	kind   keyStateKind
	pass   keycode.Key
	remapR *rule.Rule
}

func passthruState(k keycode.Key) keyState {
	return keyState{kind: kindPassthru, pass: k}
}

func remappedState(r *rule.Rule) keyState {
	return keyState{kind: kindRemapped, remapR: r}
}

// originalKey returns the physical key this entry was created for,
// whatever its current state.
func (s keyState) originalKey() keycode.Key {
	if s.kind == kindRemapped {
		return s.remapR.From.Key
	}
	return s.pass
}

// remappedKey returns the key this entry currently reflects onto the
// virtual keyboard.
func (s keyState) remappedKey() keycode.Key {
	if s.kind == kindRemapped {
		return s.remapR.To.Key
	}
	return s.pass
}

// rule returns the governing rule and true if this entry is Remapped.
func (s keyState) rule() (*rule.Rule, bool) {
	if s.kind == kindRemapped {
		return s.remapR, true
	}
	return nil, false
}
