package broadcast

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayForwardPublishesToOrderBookUpdateChannel(t *testing.T) {
	srv, url := startTestServer(t, "shared-secret")
	conn := dial(t, url)
	relay := &Relay{hub: srv.Hub}
	marketID := uuid.New()

	channel := string(OrderBookUpdateChannel(marketID))
	require.NoError(t, conn.WriteJSON(textEnvelope{Op: "subscribe", Channel: channel}))
	time.Sleep(50 * time.Millisecond)

	relay.forward(&nats.Msg{
		Subject: bookUpdatePrefix + marketID.String(),
		Data:    []byte("snapshot-bytes"),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, "snapshot-bytes", string(payload))
}

func TestRelayForwardIgnoresMalformedSubject(t *testing.T) {
	relay := &Relay{hub: NewHub()}
	// Should not panic on a subject whose suffix isn't a UUID.
	relay.forward(&nats.Msg{Subject: bookUpdatePrefix + "not-a-uuid", Data: []byte("x")})
}
