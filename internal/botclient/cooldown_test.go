package botclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_CandidatesOrderingAndDedup(t *testing.T) {
	r := newRegistry()

	got := r.candidates("http://primary", []string{"http://fb1", "http://fb2", "http://primary"}, nil)
	assert.Equal(t, []string{"http://primary", "http://fb1", "http://fb2"}, got)

	// Preferred endpoint moves to the front
	r.markSuccess("http://fb2")
	got = r.candidates("http://primary", []string{"http://fb1", "http://fb2"}, nil)
	assert.Equal(t, []string{"http://fb2", "http://primary", "http://fb1"}, got)
}

func TestRegistry_CooldownExcludesEndpoint(t *testing.T) {
	r := newRegistry()

	r.markFailure("http://primary", time.Minute)
	got := r.candidates("http://primary", []string{"http://fb1"}, nil)
	assert.Equal(t, []string{"http://fb1"}, got)

	assert.True(t, r.inCooldown("http://primary"))
	assert.False(t, r.inCooldown("http://fb1"))
}

func TestRegistry_CooldownExpires(t *testing.T) {
	r := newRegistry()
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }

	r.markFailure("http://primary", 30*time.Second)
	assert.True(t, r.inCooldown("http://primary"))

	current = current.Add(31 * time.Second)
	assert.False(t, r.inCooldown("http://primary"))

	got := r.candidates("http://primary", nil, nil)
	assert.Equal(t, []string{"http://primary"}, got)
}

func TestRegistry_PreferredStaysStickyThroughCooldown(t *testing.T) {
	r := newRegistry()
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }

	r.markSuccess("http://fb1")
	r.markFailure("http://fb1", 30*time.Second)

	// Excluded while cooling
	got := r.candidates("http://primary", []string{"http://fb1"}, nil)
	assert.Equal(t, []string{"http://primary"}, got)

	// Tried first again once the cooldown expires
	current = current.Add(31 * time.Second)
	got = r.candidates("http://primary", []string{"http://fb1"}, nil)
	assert.Equal(t, []string{"http://fb1", "http://primary"}, got)
}

func TestRegistry_SuccessClearsCooldown(t *testing.T) {
	r := newRegistry()

	r.markFailure("http://primary", time.Hour)
	r.markSuccess("http://primary")

	assert.False(t, r.inCooldown("http://primary"))
	assert.Equal(t, "http://primary", r.preferredURL())
}

func TestRegistry_ExtrasAppendedLast(t *testing.T) {
	r := newRegistry()

	got := r.candidates("", nil, []string{"http://127.0.0.1:4000/status", "http://localhost:4000/status"})
	assert.Equal(t, []string{"http://127.0.0.1:4000/status", "http://localhost:4000/status"}, got)
}

func TestRegistry_EmptyEntriesSkipped(t *testing.T) {
	r := newRegistry()

	got := r.candidates("", []string{"", "http://fb1"}, nil)
	assert.Equal(t, []string{"http://fb1"}, got)
}
