// Package rule defines the declarative remapping rule entities and the
// predicate that decides, at any instant, whether a rule currently
// applies.
package rule

import (
	"fmt"

	"github.com/tadosappo/nasskan/internal/keycode"
)

// From describes the physical side of a rule: the key it triggers on,
// and the virtual-modifier gates that must hold for the rule to be
// active.
type From struct {
	Key     keycode.Key
	With    []keycode.Modifier
	Without []keycode.Modifier
}

// To describes the virtual side of a rule: the key it produces, and any
// extra modifiers to synthesize while the rule governs its physical
// key.
type To struct {
	Key  keycode.Key
	With []keycode.Modifier
}

// Tap is the optional dual-role clause: releasing From.Key with no
// intervening physical event emits a tap of Key instead of (or in
// addition to) whatever the hold behavior produced.
type Tap struct {
	Key keycode.Key
}

// Rule is immutable once loaded and is shared by reference across every
// KeyState that currently defers to it and across every Engine built
// from the same Keymap.
type Rule struct {
	From From
	To   To
	Tap  *Tap
}

// Keymap is an ordered sequence of Rules. Order is significant: see
// Validate.
type Keymap []*Rule

// IsActive reports whether r currently governs physicalKey.
// remappedModifiers is the set of modifiers currently appearing in the
// virtual (remapped) keyboard state, as derived from the engine's
// keyboard_state — not the set of physically held modifier keys.
func IsActive(r *Rule, physicalKey keycode.Key, remappedModifiers map[keycode.Modifier]bool) bool {
	if physicalKey != r.From.Key {
		return false
	}

	for _, m := range r.From.With {
		if !remappedModifiers[m] {
			return false
		}
	}

	for _, m := range r.From.Without {
		if remappedModifiers[m] {
			return false
		}
	}

	return true
}

// Validate enforces the two load-time invariants the engine's
// single-pass rule resolution depends on:
//  1. rules whose To.Key is itself a modifier must precede every rule
//     whose To.Key is not a modifier (this is what makes the engine's
//     single-pass rule resolution in §4.2 correct);
//  2. a rule with a Tap clause must not also specify From.With,
//     From.Without or To.With.
func (k Keymap) Validate() error {
	sawNonModifierTarget := false
	for i, r := range k {
		if keycode.IsModifier(r.To.Key) {
			if sawNonModifierTarget {
				return fmt.Errorf("rule %d (%s -> %s): modifier-producing rules must come before non-modifier rules", i, r.From.Key, r.To.Key)
			}
		} else {
			sawNonModifierTarget = true
		}

		if r.Tap != nil && (len(r.From.With) > 0 || len(r.From.Without) > 0 || len(r.To.With) > 0) {
			return fmt.Errorf("rule %d (%s): tap rules must not specify from.with, from.without or to.with", i, r.From.Key)
		}
	}
	return nil
}
