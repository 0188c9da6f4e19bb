package passphrase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvault/sharecore/internal/common"
	"github.com/teamvault/sharecore/internal/logging"
)

const goodPassphrase = "hunter2"

type fixedKeySource struct {
	key *crypto.Key
	err error
}

func (f *fixedKeySource) FindPrivate(ctx context.Context) (*crypto.Key, error) {
	return f.key, f.err
}

// scriptedPrompter answers each prompt with the next scripted passphrase
// (or a cancellation) by calling back into the controller, the way a UI
// dialog would.
type scriptedPrompter struct {
	answers [][]byte // nil entry means cancel
	provide func(token string, passphrase []byte)
	cancel  func(token string)

	prompts []int    // attempt numbers observed
	closed  []string // tokens closed
}

func (p *scriptedPrompter) RequestPassphrase(ctx context.Context, token string, attempt int) error {
	p.prompts = append(p.prompts, attempt)
	if len(p.answers) == 0 {
		return nil // leave the request pending
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	if next == nil {
		p.cancel(token)
		return nil
	}
	p.provide(token, append([]byte(nil), next...))
	return nil
}

func (p *scriptedPrompter) ClosePrompt(token string) {
	p.closed = append(p.closed, token)
}

type fixedSession struct {
	pass []byte
}

func (f *fixedSession) Passphrase(ctx context.Context) ([]byte, bool) {
	if f.pass == nil {
		return nil, false
	}
	return append([]byte(nil), f.pass...), true
}

func lockedTestKey(t *testing.T) *crypto.Key {
	t.Helper()
	key, err := crypto.GenerateKey("owner", "owner@example.com", "x25519", 0)
	require.NoError(t, err)
	locked, err := key.Lock([]byte(goodPassphrase))
	require.NoError(t, err)
	return locked
}

func newTestController(t *testing.T, key *crypto.Key, prompter *scriptedPrompter, session SessionCache) *Controller {
	t.Helper()
	c := NewController(&fixedKeySource{key: key}, prompter, session, logging.NewNopLogger())
	prompter.provide = c.Provide
	prompter.cancel = c.Cancel
	return c
}

func TestAcquire_SessionCacheHit_NoPrompt(t *testing.T) {
	prompter := &scriptedPrompter{}
	c := newTestController(t, lockedTestKey(t), prompter, &fixedSession{pass: []byte(goodPassphrase)})

	key, err := c.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, key)

	locked, err := key.IsLocked()
	require.NoError(t, err)
	assert.False(t, locked)
	assert.Empty(t, prompter.prompts, "cache hit must not prompt")
}

func TestAcquire_StaleSessionCacheFallsThroughToPrompt(t *testing.T) {
	prompter := &scriptedPrompter{answers: [][]byte{[]byte(goodPassphrase)}}
	c := newTestController(t, lockedTestKey(t), prompter, &fixedSession{pass: []byte("stale")})

	key, err := c.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, []int{1}, prompter.prompts)
}

func TestAcquire_FirstPromptSucceeds(t *testing.T) {
	prompter := &scriptedPrompter{answers: [][]byte{[]byte(goodPassphrase)}}
	c := newTestController(t, lockedTestKey(t), prompter, nil)

	key, err := c.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, []int{1}, prompter.prompts)
	assert.Len(t, prompter.closed, 1)
}

func TestAcquire_ThirdAttemptSucceeds(t *testing.T) {
	prompter := &scriptedPrompter{answers: [][]byte{
		[]byte("wrong1"), []byte("wrong2"), []byte(goodPassphrase),
	}}
	c := newTestController(t, lockedTestKey(t), prompter, nil)

	key, err := c.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, []int{1, 2, 3}, prompter.prompts)
}

func TestAcquire_RetryBudgetExhausted(t *testing.T) {
	prompter := &scriptedPrompter{answers: [][]byte{
		[]byte("wrong1"), []byte("wrong2"), []byte("wrong3"), []byte("never asked"),
	}}
	c := newTestController(t, lockedTestKey(t), prompter, nil)

	_, err := c.Acquire(context.Background())
	require.ErrorIs(t, err, common.ErrPassphraseExhausted)

	// Exactly three prompts; the fourth scripted answer was never requested.
	assert.Equal(t, []int{1, 2, 3}, prompter.prompts)
	assert.Len(t, prompter.closed, 1, "prompt must be closed on exhaustion")
}

func TestAcquire_UserCancels(t *testing.T) {
	prompter := &scriptedPrompter{answers: [][]byte{nil}}
	c := newTestController(t, lockedTestKey(t), prompter, nil)

	_, err := c.Acquire(context.Background())
	require.ErrorIs(t, err, common.ErrPassphraseCancelled)
	assert.Len(t, prompter.closed, 1)
}

func TestAcquire_NoPrivateKey(t *testing.T) {
	prompter := &scriptedPrompter{}
	c := NewController(&fixedKeySource{}, prompter, nil, logging.NewNopLogger())

	_, err := c.Acquire(context.Background())
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, prompter.prompts)
}

func TestAcquire_UnlockedKeyNeedsNoPassphrase(t *testing.T) {
	key, err := crypto.GenerateKey("owner", "owner@example.com", "x25519", 0)
	require.NoError(t, err)

	prompter := &scriptedPrompter{}
	c := newTestController(t, key, prompter, &fixedSession{pass: []byte("anything")})

	got, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, prompter.prompts)
}

func TestProvide_UnknownTokenIsIgnored(t *testing.T) {
	prompter := &scriptedPrompter{}
	c := newTestController(t, lockedTestKey(t), prompter, nil)

	assert.NotPanics(t, func() {
		c.Provide("bogus-token", []byte("x"))
		c.Cancel("bogus-token")
	})
}

func TestAcquire_ContextCancelledWhilePending(t *testing.T) {
	// Prompter with no scripted answers leaves the request pending forever.
	prompter := &scriptedPrompter{}
	c := newTestController(t, lockedTestKey(t), prompter, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, prompter.closed, 1)
}

// routedPrompter drives concurrent acquisitions on one controller: each new
// token is bound to the next script from the pool, and every answer is
// delivered under the token it was prompted with.
type routedPrompter struct {
	mu      sync.Mutex
	pool    [][][]byte          // scripts not yet bound to a token
	scripts map[string][][]byte // remaining answers per token
	prompts map[string][]int    // attempt numbers observed per token

	provide func(token string, passphrase []byte)
}

func (p *routedPrompter) RequestPassphrase(ctx context.Context, token string, attempt int) error {
	p.mu.Lock()
	if _, ok := p.scripts[token]; !ok {
		p.scripts[token] = p.pool[0]
		p.pool = p.pool[1:]
	}
	p.prompts[token] = append(p.prompts[token], attempt)
	next := p.scripts[token][0]
	p.scripts[token] = p.scripts[token][1:]
	p.mu.Unlock()

	p.provide(token, append([]byte(nil), next...))
	return nil
}

func (p *routedPrompter) ClosePrompt(token string) {}

func TestAcquire_ConcurrentTokensAreIndependent(t *testing.T) {
	prompter := &routedPrompter{
		pool: [][][]byte{
			{[]byte("wrong1"), []byte("wrong2"), []byte(goodPassphrase)},
			{[]byte(goodPassphrase)},
		},
		scripts: map[string][][]byte{},
		prompts: map[string][]int{},
	}
	c := NewController(&fixedKeySource{key: lockedTestKey(t)}, prompter, nil, logging.NewNopLogger())
	prompter.provide = c.Provide

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Acquire(context.Background())
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// One token burned two retries, the other succeeded first try; neither
	// flow's failures inflated the other's attempt count.
	require.Len(t, prompter.prompts, 2)
	var counts []int
	for _, attempts := range prompter.prompts {
		for i, attempt := range attempts {
			assert.Equal(t, i+1, attempt)
		}
		counts = append(counts, len(attempts))
	}
	sort.Ints(counts)
	assert.Equal(t, []int{1, 3}, counts)
}

// capturingPrompter publishes prompted tokens and leaves requests pending so
// the test controls delivery timing.
type capturingPrompter struct {
	tokens chan string
}

func (p *capturingPrompter) RequestPassphrase(ctx context.Context, token string, attempt int) error {
	p.tokens <- token
	return nil
}

func (p *capturingPrompter) ClosePrompt(token string) {}

func TestProvide_ForeignTokenDoesNotSatisfyPendingPrompt(t *testing.T) {
	prompter := &capturingPrompter{tokens: make(chan string, 1)}
	c := NewController(&fixedKeySource{key: lockedTestKey(t)}, prompter, nil, logging.NewNopLogger())

	done := make(chan error, 1)
	go func() {
		_, err := c.Acquire(context.Background())
		done <- err
	}()
	token := <-prompter.tokens

	// A passphrase delivered under another token must leave the request
	// pending.
	c.Provide("other-"+token, []byte(goodPassphrase))
	select {
	case err := <-done:
		t.Fatalf("acquire resolved by a foreign token: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	c.Provide(token, []byte(goodPassphrase))
	require.NoError(t, <-done)
}
