package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/core/ui"
	"github.com/vietddude/crmgate/internal/core/ui/uitest"
	"github.com/vietddude/crmgate/internal/infra/storage/memory"
)

func newTestGuard(delay time.Duration) (*Guard, *memory.CredentialStore, *uitest.Notifier, *uitest.Navigator) {
	store := memory.NewCredentialStore("crm-token", "tok")
	notifier := &uitest.Notifier{}
	nav := &uitest.Navigator{}
	g := NewGuard(Config{LoginRoute: "/login.html", RedirectDelay: delay}, store, notifier, nav, nil)
	return g, store, notifier, nav
}

func TestGuard_ConcurrentFailuresRecoverOnce(t *testing.T) {
	g, store, notifier, nav := newTestGuard(10 * time.Millisecond)

	var recovered int
	g.OnRecover = func() { recovered++ }

	const n = 50
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := 401
			if i%2 == 0 {
				code = 403
			}
			errs[i] = g.HandleAuthFailure(context.Background(), code)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.ErrorIs(t, err, domain.ErrUnauthorized, "caller %d", i)
	}
	assert.True(t, g.Recovering())
	assert.Equal(t, 1, store.Clears())
	assert.Equal(t, 1, recovered)
	assert.Equal(t, 1, notifier.Count(ui.SeverityError))

	require.Eventually(t, func() bool { return len(nav.Navigations()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "/login.html", nav.Navigations()[0].Route)

	// Later failures in the same lifetime add nothing.
	assert.ErrorIs(t, g.HandleAuthFailure(context.Background(), 401), domain.ErrUnauthorized)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, nav.Navigations(), 1)
	assert.Equal(t, 1, store.Clears())
}

func TestGuard_TokenHiddenWhileRecovering(t *testing.T) {
	g, _, _, _ := newTestGuard(time.Hour)
	defer g.Stop()

	assert.Equal(t, "tok", g.Token(context.Background()))
	_ = g.HandleAuthFailure(context.Background(), 401)
	assert.Equal(t, "", g.Token(context.Background()))
}

func TestGuard_StopCancelsRedirect(t *testing.T) {
	g, _, _, nav := newTestGuard(20 * time.Millisecond)

	_ = g.HandleAuthFailure(context.Background(), 401)
	g.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, nav.Navigations())
	assert.True(t, g.Recovering(), "latch survives Stop")
}

type failingStore struct{ memory.CredentialStore }

func (f *failingStore) Clear(ctx context.Context) error { return errors.New("store down") }

func TestGuard_ClearErrorStillRecovers(t *testing.T) {
	notifier := &uitest.Notifier{}
	g := NewGuard(Config{RedirectDelay: time.Hour}, &failingStore{}, notifier, nil, nil)
	defer g.Stop()

	assert.ErrorIs(t, g.HandleAuthFailure(context.Background(), 403), domain.ErrUnauthorized)
	assert.Len(t, notifier.Notices(), 1)
	assert.Equal(t, DefaultExpiredMessage, notifier.Notices()[0].Message)
}
