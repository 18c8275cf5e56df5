package gateways

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSendRejected is returned by a Recorder scripted to fail.
var ErrSendRejected = errors.New("send rejected by provider")

// Recorder is the test gateway: it captures every message and can be
// scripted to fail the first N sends to exercise retry paths.
type Recorder struct {
	mu        sync.Mutex
	messages  []Message
	failFirst int
	attempts  int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailFirst makes the next n Send calls return an error.
func (r *Recorder) FailFirst(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFirst = n
	r.attempts = 0
}

func (r *Recorder) Send(_ context.Context, msg Message) (Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	if r.attempts <= r.failFirst {
		return Receipt{Accepted: false}, ErrSendRejected
	}

	r.messages = append(r.messages, msg)

	return Receipt{Accepted: true, ProviderID: "rec-" + uuid.New().String()[:8]}, nil
}

// Messages returns the accepted sends in order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)

	return out
}

// Attempts returns every Send call count, including failed ones.
func (r *Recorder) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.attempts
}
