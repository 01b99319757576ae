package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePeer records everything the gateway does to a connection.
type fakePeer struct {
	id string

	mu         sync.Mutex
	frames     [][]byte
	full       bool
	pings      int
	pingErr    error
	pingHold   chan struct{}
	terminated int
	closeCode  int
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (f *fakePeer) ID() string { return f.id }

func (f *fakePeer) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.terminated > 0 || f.closeCode != 0 {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

// Ping blocks until pingHold is closed when one is set, like a peer whose
// writer is stuck on a full socket.
func (f *fakePeer) Ping() error {
	if f.pingHold != nil {
		<-f.pingHold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakePeer) Close(code int, _ string) {
	f.mu.Lock()
	f.closeCode = code
	f.mu.Unlock()
}

func (f *fakePeer) Terminate() {
	f.mu.Lock()
	f.terminated++
	f.mu.Unlock()
}

func (f *fakePeer) setFull(full bool) {
	f.mu.Lock()
	f.full = full
	f.mu.Unlock()
}

func (f *fakePeer) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakePeer) terminations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// envelopes decodes every frame sent so far.
func (f *fakePeer) envelopes(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, frame := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(frame, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakePeer) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func peers(n int) []*fakePeer {
	out := make([]*fakePeer, n)
	for i := range out {
		out[i] = newFakePeer(fmt.Sprintf("peer-%d", i))
	}
	return out
}
