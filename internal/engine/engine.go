// Package engine implements the remapping state machine: given a
// stream of physical press/release/repeat events and an immutable
// Keymap, it derives the minimum, correctly ordered sequence of
// synthesized events that drives a virtual keyboard from its previous
// state to the newly derived one.
package engine

import (
	"github.com/tadosappo/nasskan/internal/eventbatch"
	"github.com/tadosappo/nasskan/internal/keycode"
	"github.com/tadosappo/nasskan/internal/rule"
)

// Engine is stateful and single-threaded. One Engine instance is owned
// by exactly one device worker; Remap is synchronous and the full
// batch of virtual events must be emitted before the next physical
// event is processed.
type Engine struct {
	keymap        rule.Keymap
	keyboardState []keyState
	lastKey       keycode.Key
}

// New creates an Engine bound to keymap. keymap is shared by reference
// and must not be mutated afterward; every Remapped keyState keeps a
// pointer into it for the engine's lifetime.
func New(keymap rule.Keymap) *Engine {
	return &Engine{
		keymap:  keymap,
		lastKey: keycode.RESERVED,
	}
}

// Remap is the engine's entire public contract. It executes the five
// phases — snapshot, state update, rule re-evaluation, emission,
// bookkeeping — in order and returns the events to emit, sorted by the
// total event order (modifier events first, then by key, then by
// event type).
func (e *Engine) Remap(received keycode.Event) []keycode.Event {
	// Phase 1: snapshot.
	oldVirtual := e.virtuallyPressed()

	// Phase 2: update keyboard_state from the physical event.
	e.updateState(received)

	// Phase 3: rule re-evaluation.
	e.convertActives()

	// Phase 4: compute emission.
	newVirtual := e.virtuallyPressed()

	batch := eventbatch.New()
	for k := range newVirtual {
		if !oldVirtual[k] {
			batch.Add(keycode.Event{Type: keycode.Press, Key: k})
		}
	}
	for k := range oldVirtual {
		if !newVirtual[k] {
			batch.Add(keycode.Event{Type: keycode.Release, Key: k})
		}
	}
	batch.AddAll(e.tapEvents(received)...)
	if re, ok := e.repeatEvent(received); ok {
		batch.Add(re)
	}

	// Phase 5: bookkeeping.
	e.lastKey = received.Key

	return batch.Slice()
}

// IsIdle reports whether no physical key is currently held, i.e.
// keyboard_state is empty.
func (e *Engine) IsIdle() bool {
	return len(e.keyboardState) == 0
}

// VirtuallyPressed exposes the current virtual key set for tests and
// diagnostics. Callers must not mutate the returned map.
func (e *Engine) VirtuallyPressed() map[keycode.Key]bool {
	return e.virtuallyPressed()
}

func (e *Engine) updateState(received keycode.Event) {
	switch received.Type {
	case keycode.Press:
		e.keyboardState = append(e.keyboardState, passthruState(received.Key))

	case keycode.Release:
		// Releasing a modifier key also drops every still-held Remapped
		// entry whose from.with names that modifier. Releasing any other
		// key (e.g. CAPSLOCK remapped to LEFTCTRL) drops only its own
		// entry; convertActives then re-evaluates the rest, so a rule
		// whose activating modifier came from that key lapses and its
		// physical key reverts to Passthru.
		releasedModifier, isModifier := keycode.ModifierForKey(received.Key)

		kept := e.keyboardState[:0:0]
		for _, ks := range e.keyboardState {
			if ks.originalKey() == received.Key {
				continue
			}
			if r, isRemapped := ks.rule(); isRemapped && isModifier {
				if containsModifier(r.From.With, releasedModifier) {
					continue
				}
			}
			kept = append(kept, ks)
		}
		e.keyboardState = kept

	case keycode.Repeat:
		// no state change
	}
}

func (e *Engine) convertActives() {
	originalKeys := make([]keycode.Key, len(e.keyboardState))
	for i, ks := range e.keyboardState {
		originalKeys[i] = ks.originalKey()
	}

	// Mark every entry uncommitted, using RESERVED as the sentinel.
	for i := range e.keyboardState {
		e.keyboardState[i] = passthruState(keycode.RESERVED)
	}

	for _, r := range e.keymap {
		for i, originalKey := range originalKeys {
			if _, isRemapped := e.keyboardState[i].rule(); isRemapped {
				continue
			}
			if rule.IsActive(r, originalKey, e.remappedModifierSet()) {
				e.keyboardState[i] = remappedState(r)
				break
			}
		}
	}

	for i := range e.keyboardState {
		if e.keyboardState[i].kind == kindPassthru && e.keyboardState[i].pass == keycode.RESERVED {
			e.keyboardState[i] = passthruState(originalKeys[i])
		}
	}
}

// virtuallyPressed is the pure derivation of the set of keys the
// virtual keyboard currently reports as held. Only the last entry's
// with/without clauses reshape the set.
func (e *Engine) virtuallyPressed() map[keycode.Key]bool {
	result := make(map[keycode.Key]bool, len(e.keyboardState))
	for _, ks := range e.keyboardState {
		result[ks.remappedKey()] = true
	}

	if len(e.keyboardState) == 0 {
		return result
	}

	last := e.keyboardState[len(e.keyboardState)-1]
	if r, ok := last.rule(); ok {
		for _, m := range r.From.With {
			delete(result, keycode.KeyForModifier(m))
		}
		result[r.To.Key] = true
		for _, m := range r.To.With {
			result[keycode.KeyForModifier(m)] = true
		}
	}

	return result
}

func (e *Engine) tapEvents(received keycode.Event) []keycode.Event {
	if received.Type != keycode.Release || e.lastKey != received.Key {
		return nil
	}

	for _, r := range e.keymap {
		if r.Tap != nil && received.Key == r.From.Key {
			return []keycode.Event{
				{Type: keycode.Press, Key: r.Tap.Key},
				{Type: keycode.Release, Key: r.Tap.Key},
			}
		}
	}

	return nil
}

func (e *Engine) repeatEvent(received keycode.Event) (keycode.Event, bool) {
	if received.Type != keycode.Repeat {
		return keycode.Event{}, false
	}

	for _, ks := range e.keyboardState {
		if r, ok := ks.rule(); ok && received.Key == r.From.Key {
			return keycode.Event{Type: keycode.Repeat, Key: r.To.Key}, true
		}
	}

	return received, true
}

// remappedModifierSet is the virtual-modifier set rule.IsActive reads:
// the modifiers among every current entry's remappedKey(), including
// entries still mid-commit during convertActives (whose sentinel
// remappedKey is RESERVED and so never matches a modifier).
func (e *Engine) remappedModifierSet() map[keycode.Modifier]bool {
	set := make(map[keycode.Modifier]bool)
	for _, ks := range e.keyboardState {
		if m, ok := keycode.ModifierForKey(ks.remappedKey()); ok {
			set[m] = true
		}
	}
	return set
}

// modifierMap is rule.from.key -> the virtual modifier it produces,
// for every rule whose to.key is itself a modifier.
func (e *Engine) modifierMap() map[keycode.Key]keycode.Modifier {
	m := make(map[keycode.Key]keycode.Modifier)
	for _, r := range e.keymap {
		if mod, ok := keycode.ModifierForKey(r.To.Key); ok {
			m[r.From.Key] = mod
		}
	}
	return m
}

func containsModifier(mods []keycode.Modifier, m keycode.Modifier) bool {
	for _, x := range mods {
		if x == m {
			return true
		}
	}
	return false
}
