package consumer

import (
	"sync"

	"github.com/streamguard/streamguard-go/pkg/sequence"
)

// SyncValidator wraps a sequence.Validator with a mutex. The validator itself
// is lock-free and owned by one sequential partition loop; this wrapper exists
// for deployments where an introspection surface (the ops API) reads halted
// state or resets threads while the loop is running.
type SyncValidator struct {
	mu    sync.Mutex
	inner sequence.Validator
}

// NewSyncValidator wraps inner for shared use.
func NewSyncValidator(inner sequence.Validator) *SyncValidator {
	return &SyncValidator{inner: inner}
}

func (v *SyncValidator) Validate(threadID string, seq uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inner.Validate(threadID, seq)
}

func (v *SyncValidator) Reset(threadID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inner.Reset(threadID)
}

func (v *SyncValidator) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inner.Clear()
}

func (v *SyncValidator) ResetHalted(threadID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inner.ResetHalted(threadID)
}

func (v *SyncValidator) IsHalted(threadID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inner.IsHalted(threadID)
}

func (v *SyncValidator) HaltedThreads() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inner.HaltedThreads()
}

func (v *SyncValidator) ExpectedForThread(threadID string) (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inner.ExpectedForThread(threadID)
}

// Verify that SyncValidator implements the Validator interface at compile time
var _ sequence.Validator = (*SyncValidator)(nil)
