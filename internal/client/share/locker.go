package share

import "context"

// Locker serializes whole sharing operations against the shared keyring and
// progress state. The orchestrator only consumes the scoped-acquisition
// contract; where the serialization happens (in-process mutex, file lock,
// browser runtime) is the embedding application's choice.
type Locker interface {
	// Acquire blocks until the lock is held and returns its release
	// function.
	Acquire(ctx context.Context) (release func(), err error)
}

type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context) (func(), error) {
	return func() {}, nil
}

// NoLock is a Locker for single-owner setups where no other operation can
// touch the caches concurrently.
var NoLock Locker = noopLocker{}
