package auditrepofakes

import (
	"context"
	"sync"

	"github.com/taskhive/identity/audit"
)

var _ audit.Recorder = (*FakeRecorder)(nil)

type FakeRecorder struct {
	attempts []*audit.Attempt
	lock     sync.Mutex
}

func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{}
}

func (fr *FakeRecorder) Record(_ context.Context, attempt *audit.Attempt) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	fr.attempts = append(fr.attempts, attempt)
	return nil
}

// Attempts returns a snapshot of everything recorded so far.
func (fr *FakeRecorder) Attempts() []*audit.Attempt {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	out := make([]*audit.Attempt, len(fr.attempts))
	copy(out, fr.attempts)
	return out
}
