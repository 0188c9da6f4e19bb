// Package passphrase implements the bounded-retry acquisition of the device
// owner's decrypted private key. Acquisition is an explicit state machine so
// every transition is testable; wrong passphrases are values, not errors.
package passphrase

import (
	"context"
	"fmt"
	"sync"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/google/uuid"

	"github.com/teamvault/sharecore/internal/client/pgp"
	"github.com/teamvault/sharecore/internal/common"
	"github.com/teamvault/sharecore/internal/logging"
)

// maxAttempts is the hard retry budget per acquisition request. It is an
// invariant of the flow, not a tunable.
const maxAttempts = 3

// State of one acquisition request.
type State int

const (
	StateAwaitingCache State = iota
	StatePromptingUser
	StateValidating
	StateDone
	StateFailed
)

// Prompter is the external UI collaborator. RequestPassphrase must return
// promptly after showing the prompt; the answer arrives asynchronously via
// Provide or Cancel, correlated by token.
type Prompter interface {
	RequestPassphrase(ctx context.Context, token string, attempt int) error
	ClosePrompt(token string)
}

// SessionCache is an optional external passphrase store. The controller
// reads it as untrusted input; it never writes to it and never owns it.
type SessionCache interface {
	Passphrase(ctx context.Context) ([]byte, bool)
}

// PrivateKeySource yields the still-locked device private key.
// keyring.Cache satisfies it.
type PrivateKeySource interface {
	FindPrivate(ctx context.Context) (*crypto.Key, error)
}

type answer struct {
	passphrase []byte
	cancelled  bool
}

// Controller runs passphrase acquisitions. Simultaneous acquisitions are
// keyed by independent tokens; one caller's attempts never leak into
// another's retry count.
type Controller struct {
	keys     PrivateKeySource
	prompter Prompter
	session  SessionCache // may be nil
	log      logging.Logger

	mu      sync.Mutex
	pending map[string]chan answer
}

func NewController(keys PrivateKeySource, prompter Prompter, session SessionCache, log logging.Logger) *Controller {
	return &Controller{
		keys:     keys,
		prompter: prompter,
		session:  session,
		log:      log.With("component", "passphrase"),
		pending:  make(map[string]chan answer),
	}
}

// Provide delivers a passphrase for a pending request. Unknown tokens are
// ignored, so a stale UI cannot interfere with a newer acquisition.
func (c *Controller) Provide(token string, passphrase []byte) {
	c.deliver(token, answer{passphrase: passphrase})
}

// Cancel aborts a pending request.
func (c *Controller) Cancel(token string) {
	c.deliver(token, answer{cancelled: true})
}

func (c *Controller) deliver(token string, a answer) {
	c.mu.Lock()
	ch, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	c.mu.Unlock()
	if ok {
		ch <- a
	}
}

// Acquire obtains the unlocked device private key, prompting the user up to
// maxAttempts times. The unlocked key lives only in memory and is never
// written back anywhere; the caller must not retain it beyond the operation
// that requested it.
func (c *Controller) Acquire(ctx context.Context) (*crypto.Key, error) {
	locked, err := c.keys.FindPrivate(ctx)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, fmt.Errorf("no private key in the keyring: %w", common.ErrNotFound)
	}

	token := uuid.NewString()
	state := StateAwaitingCache
	attempt := 0
	var current []byte

	for {
		switch state {
		case StateAwaitingCache:
			if key, ok := c.tryCached(ctx, locked); ok {
				return key, nil
			}
			state = StatePromptingUser

		case StatePromptingUser:
			if attempt >= maxAttempts {
				state = StateFailed
				continue
			}
			attempt++
			a, err := c.prompt(ctx, token, attempt)
			if err != nil {
				return nil, err
			}
			if a.cancelled {
				c.prompter.ClosePrompt(token)
				return nil, fmt.Errorf("prompt cancelled by user: %w", common.ErrPassphraseCancelled)
			}
			current = a.passphrase
			state = StateValidating

		case StateValidating:
			res, err := pgp.Unlock(locked, current)
			common.WipeBytes(current)
			current = nil
			if err != nil {
				c.prompter.ClosePrompt(token)
				return nil, err
			}
			if res.State == pgp.Unlocked {
				c.prompter.ClosePrompt(token)
				return res.Key, nil
			}
			c.log.Debug(ctx, "passphrase rejected", "attempt", attempt)
			state = StatePromptingUser

		case StateFailed:
			c.prompter.ClosePrompt(token)
			return nil, fmt.Errorf("no valid passphrase after %d attempts: %w", maxAttempts, common.ErrPassphraseExhausted)
		}
	}
}

// tryCached attempts an unlock with the session-cached passphrase, if any.
// A stale cached passphrase is not an error; the flow falls through to the
// prompt.
func (c *Controller) tryCached(ctx context.Context, locked *crypto.Key) (*crypto.Key, bool) {
	if c.session == nil {
		return nil, false
	}
	pass, ok := c.session.Passphrase(ctx)
	if !ok {
		return nil, false
	}
	defer common.WipeBytes(pass)

	res, err := pgp.Unlock(locked, pass)
	if err != nil || res.State != pgp.Unlocked {
		return nil, false
	}
	return res.Key, true
}

func (c *Controller) prompt(ctx context.Context, token string, attempt int) (answer, error) {
	ch := make(chan answer, 1)
	c.mu.Lock()
	c.pending[token] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, token)
		c.mu.Unlock()
	}()

	if err := c.prompter.RequestPassphrase(ctx, token, attempt); err != nil {
		return answer{}, fmt.Errorf("requesting passphrase: %w", err)
	}

	select {
	case a := <-ch:
		return a, nil
	case <-ctx.Done():
		c.prompter.ClosePrompt(token)
		return answer{}, ctx.Err()
	}
}
