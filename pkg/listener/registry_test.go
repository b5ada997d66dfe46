package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAddRemoveRestoresCount(t *testing.T) {
	r := New()
	h := r.Add("status", func(any) {})
	assert.Equal(t, 1, r.CountFor("status"))
	r.Remove(h)
	assert.Equal(t, 0, r.CountFor("status"))
}

func TestSingleUseFiresAtMostOnce(t *testing.T) {
	r := New()
	calls := 0
	r.AddSingleUse("reply_x", func(any) { calls++ })
	r.Dispatch("reply_x", nil)
	r.Dispatch("reply_x", nil)
	r.Dispatch("reply_x", nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.CountFor("reply_x"))
}

func TestDispatchOrderIsInsertionOrder(t *testing.T) {
	r := New()
	var order []int
	r.Add("e", func(any) { order = append(order, 1) })
	r.Add("e", func(any) { order = append(order, 2) })
	r.Add("e", func(any) { order = append(order, 3) })
	r.Dispatch("e", nil)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDispatchSnapshotsDuringMutation(t *testing.T) {
	r := New()
	var fired []string
	var h2 Handle
	r.Add("e", func(any) { fired = append(fired, "first") })
	r.Add("e", func(any) {
		fired = append(fired, "second")
		// Removing h2 mid-dispatch must not affect this dispatch pass.
		r.Remove(h2)
		r.Add("e", func(any) { fired = append(fired, "added-mid-dispatch") })
	})
	h2 = r.Add("e", func(any) { fired = append(fired, "third") })

	r.Dispatch("e", nil)
	assert.Equal(t, []string{"first", "second", "third"}, fired)

	fired = nil
	r.Dispatch("e", nil)
	// h2 ("third") was removed during the first dispatch; the callback
	// added during that dispatch only shows up starting now.
	assert.Equal(t, []string{"first", "second", "added-mid-dispatch"}, fired)
}

func TestPanickingCallbackDoesNotStopDispatch(t *testing.T) {
	r := New()
	var ran bool
	r.Add("e", func(any) { panic("boom") })
	r.Add("e", func(any) { ran = true })
	require.NotPanics(t, func() { r.Dispatch("e", nil) })
	assert.True(t, ran)
}

// TestProperty_AddRemoveIsNeutral is Testable Property 2: for any sequence
// of Add(t, cb) followed by Remove of the returned handle, CountFor(t) is
// unchanged.
func TestProperty_AddRemoveIsNeutral(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := New()
		eventType := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "eventType")
		before := r.CountFor(eventType)

		n := rapid.IntRange(0, 20).Draw(t, "n")
		handles := make([]Handle, 0, n)
		for i := 0; i < n; i++ {
			handles = append(handles, r.Add(eventType, func(any) {}))
		}
		for _, h := range handles {
			r.Remove(h)
		}

		assert.Equal(t, before, r.CountFor(eventType))
	})
}

// TestProperty_SingleUseFiresAtMostOnce is Testable Property 3 under
// randomized dispatch counts.
func TestProperty_SingleUseFiresAtMostOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := New()
		calls := 0
		r.AddSingleUse("e", func(any) { calls++ })

		n := rapid.IntRange(0, 10).Draw(t, "dispatches")
		for i := 0; i < n; i++ {
			r.Dispatch("e", nil)
		}

		assert.LessOrEqual(t, calls, 1)
	})
}
