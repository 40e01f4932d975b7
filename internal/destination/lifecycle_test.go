package destination

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitionRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *transitionRecorder) hook(destination, transition string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, destination+":"+transition)
}

func newTestLifecycle(t *testing.T) (*Lifecycle, *transitionRecorder) {
	t.Helper()

	reg := NewRegistry([]Seed{
		{Name: "erp", URL: "https://erp.example.com", User: "u", Password: "p", WebIDEUsage: "odata_abap"},
	})
	rec := &transitionRecorder{}
	return NewLifecycle(reg, WithTransitionHook(rec.hook)), rec
}

func credentials(t *testing.T, l *Lifecycle, name string) Credentials {
	t.Helper()
	rec, ok := l.Registry().Lookup(name)
	require.True(t, ok)
	return rec.Credentials()
}

func TestOnForwardResponse_LocksAndCaptures(t *testing.T) {
	t.Parallel()

	l, events := newTestLifecycle(t)

	l.OnForwardResponse("erp", []string{"SAP_SESSIONID=abc", "sap-usercontext=client=100"}, "tok-1")

	creds := credentials(t, l, "erp")
	assert.True(t, creds.Locked)
	assert.Equal(t, "SAP_SESSIONID=abc; sap-usercontext=client=100", creds.Cookie)
	assert.Equal(t, "tok-1", creds.Token)
	assert.Equal(t, TokenHeld, creds.TokenState())
	assert.Equal(t, []string{"erp:lock"}, events.events)
}

func TestOnForwardResponse_FirstWriterWins(t *testing.T) {
	t.Parallel()

	l, events := newTestLifecycle(t)

	l.OnForwardResponse("erp", []string{"a=1"}, "first")
	l.OnForwardResponse("erp", []string{"b=2"}, "second")

	creds := credentials(t, l, "erp")
	assert.Equal(t, "a=1", creds.Cookie)
	assert.Equal(t, "first", creds.Token)
	assert.Equal(t, []string{"erp:lock", "erp:ignored"}, events.events)
}

func TestOnForwardResponse_MissingHeaders(t *testing.T) {
	t.Parallel()

	l, _ := newTestLifecycle(t)

	l.OnForwardResponse("erp", nil, "")

	creds := credentials(t, l, "erp")
	assert.True(t, creds.Locked)
	assert.Empty(t, creds.Cookie)
	assert.Empty(t, creds.Token)
}

func TestOnForwardResponse_RequiredKeepsFetchSentinel(t *testing.T) {
	t.Parallel()

	l, _ := newTestLifecycle(t)

	l.OnForwardResponse("erp", []string{"s=1"}, RequiredToken)

	creds := credentials(t, l, "erp")
	assert.True(t, creds.Locked)
	assert.Equal(t, FetchToken, creds.Token)
	assert.Equal(t, "s=1", creds.Cookie)
}

func TestOnForwardResponse_UnknownDestination(t *testing.T) {
	t.Parallel()

	l, events := newTestLifecycle(t)

	assert.NotPanics(t, func() {
		l.OnForwardResponse("missing", []string{"x=1"}, "t")
		l.OnForwardFailure("missing")
	})
	assert.Empty(t, events.events)
}

func TestOnForwardFailure_ResetsExactly(t *testing.T) {
	t.Parallel()

	l, events := newTestLifecycle(t)

	l.OnForwardResponse("erp", []string{"a=1"}, "tok")
	l.OnForwardFailure("erp")

	creds := credentials(t, l, "erp")
	assert.False(t, creds.Locked)
	assert.Empty(t, creds.Cookie)
	assert.Equal(t, FetchToken, creds.Token)

	l.OnForwardFailure("erp")
	assert.Equal(t, creds, credentials(t, l, "erp"))
	assert.Equal(t, []string{"erp:lock", "erp:unlock"}, events.events)
}

func TestOnForwardFailure_UnlockedIsNoop(t *testing.T) {
	t.Parallel()

	reg := NewRegistry([]Seed{{Name: "cdn", URL: "https://cdn"}})
	l := NewLifecycle(reg)

	l.OnForwardFailure("cdn")

	rec, _ := reg.Lookup("cdn")
	assert.Equal(t, Credentials{}, rec.Credentials())
}

func TestLifecycle_RelockAfterUnlock(t *testing.T) {
	t.Parallel()

	l, _ := newTestLifecycle(t)

	l.OnForwardResponse("erp", []string{"a=1"}, "one")
	l.OnForwardFailure("erp")
	l.OnForwardResponse("erp", []string{"b=2"}, "two")

	creds := credentials(t, l, "erp")
	assert.True(t, creds.Locked)
	assert.Equal(t, "b=2", creds.Cookie)
	assert.Equal(t, "two", creds.Token)
}

func TestOnForwardResponse_ConcurrentSingleCapture(t *testing.T) {
	t.Parallel()

	l, events := newTestLifecycle(t)

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			l.OnForwardResponse("erp", []string{"s=1"}, "tok")
		}()
	}
	wg.Wait()

	locks := 0
	for _, e := range events.events {
		if e == "erp:lock" {
			locks++
		}
	}
	assert.Equal(t, 1, locks)
	assert.Len(t, events.events, workers)
}
