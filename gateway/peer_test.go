package gateway

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWSPeer_PingIsQueuedForWriter(t *testing.T) {
	// No writePump and no socket: Ping must only signal, never write.
	p := newWSPeer("p1", nil, 1, time.Second, zap.NewNop().Sugar())

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Ping())
	}
	assert.Len(t, p.ping, 1, "pending pings coalesce")

	close(p.done)
	assert.ErrorIs(t, p.Ping(), websocket.ErrCloseSent)
	assert.False(t, p.Send([]byte(`{}`)))
}
