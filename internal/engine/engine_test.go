package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tadosappo/nasskan/internal/keycode"
	"github.com/tadosappo/nasskan/internal/rule"
)

// scenarioKeymap is a small keymap covering passthrough, a chained
// modifier remap, and a dual-purpose tap key:
//
//	R1: A -> B
//	R2: CAPSLOCK -> LEFTCTRL
//	R3: F with={LEFTCTRL} -> RIGHT
//	R4: SPACE -> LEFTSHIFT, tap SPACE
func scenarioKeymap() rule.Keymap {
	return rule.Keymap{
		{From: rule.From{Key: keycode.KeyA}, To: rule.To{Key: keycode.KeyB}},
		{From: rule.From{Key: keycode.KeyCapsLock}, To: rule.To{Key: keycode.KeyLeftCtrl}},
		{From: rule.From{Key: keycode.KeyF, With: []keycode.Modifier{keycode.LeftCtrl}}, To: rule.To{Key: keycode.KeyRight}},
		{From: rule.From{Key: keycode.KeySpace}, To: rule.To{Key: keycode.KeyLeftShift}, Tap: &rule.Tap{Key: keycode.KeySpace}},
	}
}

func press(k keycode.Key) keycode.Event   { return keycode.Event{Type: keycode.Press, Key: k} }
func release(k keycode.Key) keycode.Event { return keycode.Event{Type: keycode.Release, Key: k} }
func repeat(k keycode.Key) keycode.Event  { return keycode.Event{Type: keycode.Repeat, Key: k} }

func TestSimpleRemap(t *testing.T) {
	e := New(scenarioKeymap())

	assert.Equal(t, []keycode.Event{press(keycode.KeyB)}, e.Remap(press(keycode.KeyA)))
	assert.Equal(t, []keycode.Event{release(keycode.KeyB)}, e.Remap(release(keycode.KeyA)))
	assert.True(t, e.IsIdle())
}

func TestUnmappedKeyPassesThroughUnchanged(t *testing.T) {
	e := New(scenarioKeymap())

	assert.Equal(t, []keycode.Event{press(keycode.KeyQ)}, e.Remap(press(keycode.KeyQ)))
	assert.Equal(t, []keycode.Event{release(keycode.KeyQ)}, e.Remap(release(keycode.KeyQ)))
}

func TestChainViaRemappedModifier(t *testing.T) {
	e := New(scenarioKeymap())

	assert.Equal(t, []keycode.Event{press(keycode.KeyLeftCtrl)}, e.Remap(press(keycode.KeyCapsLock)))

	// F's rule requires the virtual modifier LeftCtrl, which CAPSLOCK now
	// supplies. The rule's from.with consumes LeftCtrl from the virtual
	// set (it is the last entry), so LEFTCTRL is released as RIGHT takes
	// its place.
	got := e.Remap(press(keycode.KeyF))
	assert.ElementsMatch(t, []keycode.Event{release(keycode.KeyLeftCtrl), press(keycode.KeyRight)}, got)
	assert.False(t, e.VirtuallyPressed()[keycode.KeyLeftCtrl])
	assert.True(t, e.VirtuallyPressed()[keycode.KeyRight])

	// Releasing F un-consumes LeftCtrl: RIGHT goes away, LEFTCTRL (from
	// CAPSLOCK, now the last entry again) reappears.
	got = e.Remap(release(keycode.KeyF))
	assert.ElementsMatch(t, []keycode.Event{release(keycode.KeyRight), press(keycode.KeyLeftCtrl)}, got)

	assert.Equal(t, []keycode.Event{release(keycode.KeyLeftCtrl)}, e.Remap(release(keycode.KeyCapsLock)))
	assert.True(t, e.IsIdle())
}

func TestTap(t *testing.T) {
	e := New(scenarioKeymap())

	assert.Equal(t, []keycode.Event{press(keycode.KeyLeftShift)}, e.Remap(press(keycode.KeySpace)))

	got := e.Remap(release(keycode.KeySpace))
	assert.Equal(t, []keycode.Event{
		release(keycode.KeyLeftShift),
		press(keycode.KeySpace),
		release(keycode.KeySpace),
	}, got)
	assert.True(t, e.IsIdle())
}

func TestHoldNoTapWhenAnotherKeyIntervenes(t *testing.T) {
	e := New(scenarioKeymap())

	require.Equal(t, []keycode.Event{press(keycode.KeyLeftShift)}, e.Remap(press(keycode.KeySpace)))
	require.Equal(t, []keycode.Event{press(keycode.KeyB)}, e.Remap(press(keycode.KeyA)))
	require.Equal(t, []keycode.Event{release(keycode.KeyB)}, e.Remap(release(keycode.KeyA)))

	got := e.Remap(release(keycode.KeySpace))
	assert.Equal(t, []keycode.Event{release(keycode.KeyLeftShift)}, got)
	for _, ev := range got {
		assert.NotEqual(t, keycode.KeySpace, ev.Key)
	}
}

func TestRepeatPassthroughVsRemap(t *testing.T) {
	e := New(scenarioKeymap())

	require.Equal(t, []keycode.Event{press(keycode.KeyB)}, e.Remap(press(keycode.KeyA)))
	assert.Equal(t, []keycode.Event{repeat(keycode.KeyB)}, e.Remap(repeat(keycode.KeyA)))
}

func TestRepeatOfUnmappedKeyPassesThrough(t *testing.T) {
	e := New(scenarioKeymap())

	require.Equal(t, []keycode.Event{press(keycode.KeyQ)}, e.Remap(press(keycode.KeyQ)))
	assert.Equal(t, []keycode.Event{repeat(keycode.KeyQ)}, e.Remap(repeat(keycode.KeyQ)))
}

func TestRepeatIsIdempotentForKeyboardState(t *testing.T) {
	e := New(scenarioKeymap())

	e.Remap(press(keycode.KeyA))
	before := len(e.keyboardState)
	e.Remap(repeat(keycode.KeyA))
	assert.Equal(t, before, len(e.keyboardState))
}

func TestReleaseOfActivatingModifierReExposesPhysicalKey(t *testing.T) {
	e := New(scenarioKeymap())

	require.Equal(t, []keycode.Event{press(keycode.KeyLeftCtrl)}, e.Remap(press(keycode.KeyCapsLock)))
	require.ElementsMatch(t, []keycode.Event{release(keycode.KeyLeftCtrl), press(keycode.KeyRight)}, e.Remap(press(keycode.KeyF)))

	// CAPSLOCK releases while F is still physically held. CAPSLOCK is
	// not itself a modifier key, so only its own entry is removed; on
	// re-evaluation R3 no longer sees LeftCtrl and F re-commits as
	// Passthru: RIGHT is released and F pressed. Releasing F afterward
	// releases F.
	got := e.Remap(release(keycode.KeyCapsLock))
	assert.Equal(t, []keycode.Event{press(keycode.KeyF), release(keycode.KeyRight)}, got)

	assert.Equal(t, []keycode.Event{release(keycode.KeyF)}, e.Remap(release(keycode.KeyF)))
	assert.True(t, e.IsIdle())
}

func TestPressReleaseBalance(t *testing.T) {
	e := New(scenarioKeymap())

	sequence := []keycode.Event{
		press(keycode.KeyCapsLock),
		press(keycode.KeyF),
		press(keycode.KeyA),
		repeat(keycode.KeyA),
		release(keycode.KeyA),
		release(keycode.KeyF),
		release(keycode.KeyCapsLock),
	}

	pressed := map[keycode.Key]int{}
	released := map[keycode.Key]int{}
	for _, ev := range sequence {
		for _, out := range e.Remap(ev) {
			switch out.Type {
			case keycode.Press:
				pressed[out.Key]++
			case keycode.Release:
				released[out.Key]++
			}
		}
	}

	assert.Equal(t, pressed, released)
	assert.True(t, e.IsIdle())
	assert.Empty(t, e.VirtuallyPressed())
}

func TestModifierEventsPrecedeNonModifierInBatch(t *testing.T) {
	e := New(scenarioKeymap())
	e.Remap(press(keycode.KeyCapsLock))
	got := e.Remap(press(keycode.KeyF)) // releases LEFTCTRL and presses RIGHT in one batch

	seenNonModifier := false
	for _, ev := range got {
		if !keycode.IsModifier(ev.Key) {
			seenNonModifier = true
			continue
		}
		assert.False(t, seenNonModifier, "modifier event %v appeared after a non-modifier event", ev)
	}
}

func TestReplayDeterminism(t *testing.T) {
	sequence := []keycode.Event{
		press(keycode.KeyCapsLock),
		press(keycode.KeyF),
		repeat(keycode.KeyF),
		release(keycode.KeyF),
		release(keycode.KeyCapsLock),
		press(keycode.KeySpace),
		release(keycode.KeySpace),
	}

	run := func() [][]keycode.Event {
		e := New(scenarioKeymap())
		var out [][]keycode.Event
		for _, ev := range sequence {
			out = append(out, e.Remap(ev))
		}
		return out
	}

	assert.Equal(t, run(), run())
}
