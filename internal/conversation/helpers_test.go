package conversation_test

import (
	"context"
	"errors"
	"sync"

	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/store"
)

// fakeSummarizer returns a fixed text and records how it was called.
type fakeSummarizer struct {
	mu      sync.Mutex
	text    string
	calls   int
	lastLen int
}

func (f *fakeSummarizer) Summarize(_ context.Context, turns []conversation.Turn) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLen = len(turns)
	return f.text, true
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSummarizer) lastSegmentLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLen
}

// failStore errors on every operation, for soft-failure tests.
type failStore struct{}

var errStoreDown = errors.New("store down")

func (failStore) Save(store.Record) error           { return errStoreDown }
func (failStore) Load(string) (store.Record, error) { return store.Record{}, errStoreDown }
func (failStore) Delete(string) error               { return errStoreDown }
func (failStore) List() ([]string, error)           { return nil, errStoreDown }
func (failStore) Stats() (store.Stats, error)       { return store.Stats{}, errStoreDown }
