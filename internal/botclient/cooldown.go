package botclient

import (
	"sync"
	"time"
)

// endpointState tracks failure bookkeeping for one candidate endpoint.
// State machine: Available -> (failure) -> Cooling(until) -> Available.
// There are no retries within a cooling window; the endpoint is simply
// excluded from candidate lists until the window elapses.
type endpointState struct {
	LastFailureAt time.Time
	CooldownUntil time.Time
}

// registry is the process-local cooldown map and preferred-endpoint
// pointer. It holds no cross-process state: each instance maintains its
// own failover view, the bot itself is the coordination point.
type registry struct {
	mu        sync.Mutex
	endpoints map[string]*endpointState
	preferred string
	now       func() time.Time
}

func newRegistry() *registry {
	return &registry{
		endpoints: make(map[string]*endpointState),
		now:       time.Now,
	}
}

// markFailure puts the endpoint into cooldown for the given window.
// The preferred pointer is not cleared: once the window expires the
// endpoint is tried first again until another endpoint succeeds.
func (r *registry) markFailure(url string, window time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.endpoints[url]
	if !ok {
		state = &endpointState{}
		r.endpoints[url] = state
	}
	state.LastFailureAt = r.now()
	state.CooldownUntil = r.now().Add(window)
}

// markSuccess records the endpoint as preferred and clears its cooldown.
func (r *registry) markSuccess(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.preferred = url
	if state, ok := r.endpoints[url]; ok {
		state.CooldownUntil = time.Time{}
	}
}

// inCooldown reports whether the endpoint is inside its cooling window.
func (r *registry) inCooldown(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inCooldownLocked(url)
}

func (r *registry) inCooldownLocked(url string) bool {
	state, ok := r.endpoints[url]
	if !ok {
		return false
	}
	return r.now().Before(state.CooldownUntil)
}

// candidates builds the ordered attempt list: the last-successful endpoint
// first, then the primary, then the fallbacks, deduplicated and filtered
// to exclude endpoints currently cooling.
func (r *registry) candidates(primary string, fallbacks, extras []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := make([]string, 0, 2+len(fallbacks)+len(extras))
	if r.preferred != "" {
		ordered = append(ordered, r.preferred)
	}
	if primary != "" {
		ordered = append(ordered, primary)
	}
	ordered = append(ordered, fallbacks...)
	ordered = append(ordered, extras...)

	seen := make(map[string]struct{}, len(ordered))
	out := make([]string, 0, len(ordered))
	for _, url := range ordered {
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		if r.inCooldownLocked(url) {
			continue
		}
		out = append(out, url)
	}
	return out
}

// preferredURL returns the sticky last-successful endpoint, if any.
func (r *registry) preferredURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preferred
}
