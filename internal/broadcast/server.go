package broadcast

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/wire"
)

const (
	heartbeatInterval = 45 * time.Second
	pongWait          = heartbeatInterval + 10*time.Second
)

// textEnvelope is the subscribe/unsubscribe JSON frame clients send.
type textEnvelope struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
}

// Server upgrades incoming HTTP connections to websockets and dispatches
// their frames through the Hub.
type Server struct {
	Hub          *Hub
	SharedSecret string
	upgrader     websocket.Upgrader
}

// NewServer constructs a Server. sharedSecret gates the privileged-uplink
// handshake used by the matching engine's own connection.
func NewServer(hub *Hub, sharedSecret string) *Server {
	return &Server{
		Hub:          hub,
		SharedSecret: sharedSecret,
		upgrader:     websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}
}

// ServeHTTP upgrades the request and spawns the connection's lifecycle
// under t, so the accept handler itself can return immediately.
func (s *Server) ServeHTTP(t *tomb.Tomb, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := newClient(conn)
	t.Go(func() error {
		return s.handleConnection(t, client)
	})
}

func (s *Server) handleConnection(t *tomb.Tomb, client *Client) error {
	defer func() {
		s.Hub.UnsubscribeAll(client)
		if err := client.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing client connection")
		}
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	t.Go(func() error {
		s.heartbeat(client, done)
		return nil
	})
	defer close(done)

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msgType, payload, err := client.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("client", client.ID.String()).Msg("client read loop ended")
			return nil
		}

		switch msgType {
		case websocket.TextMessage:
			s.handleText(client, payload)
		case websocket.BinaryMessage:
			s.handleBinary(client, payload)
		}
	}
}

func (s *Server) heartbeat(client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.WritePing(); err != nil {
				log.Debug().Err(err).Str("client", client.ID.String()).Msg("heartbeat ping failed")
				return
			}
		}
	}
}

func (s *Server) handleText(client *Client, payload []byte) {
	var env textEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Warn().Err(err).Msg("received malformed subscribe envelope")
		return
	}

	channel := Channel(env.Channel)
	switch env.Op {
	case "subscribe":
		s.Hub.Subscribe(channel, client)
	case "unsubscribe":
		s.Hub.Unsubscribe(channel, client)
	default:
		log.Warn().Str("op", env.Op).Msg("received unrecognized subscribe op")
	}
}

func (s *Server) handleBinary(client *Client, payload []byte) {
	msg, err := wire.Decode(payload)
	if err != nil {
		log.Warn().Err(err).Msg("failed to decode binary frame")
		return
	}

	switch msg.Op {
	case wire.OpHandshake:
		s.handleHandshake(client, msg)
	case wire.OpPost:
		s.handlePost(client, msg)
	default:
		log.Warn().Uint8("op", uint8(msg.Op)).Msg("received unrecognized binary op")
	}
}

// handleHandshake authenticates the privileged uplink and, on success,
// registers this connection as the OrderService special client.
func (s *Server) handleHandshake(client *Client, msg wire.WsMessage) {
	if string(msg.Params) != s.SharedSecret {
		log.Warn().Str("client", client.ID.String()).Msg("rejected handshake with bad shared secret")
		return
	}
	s.Hub.RegisterSpecialClient(OrderService, client)
	log.Info().Str("client", client.ID.String()).Msg("registered privileged uplink")
}

// handlePost relays a fresh price/book payload to every subscriber of the
// channel the uplink named.
func (s *Server) handlePost(client *Client, msg wire.WsMessage) {
	s.Hub.Publish(Channel(msg.Channel), msg.Params)
}
