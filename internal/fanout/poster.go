package fanout

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"fenrir/internal/broadcast"
	"fenrir/internal/wire"
)

type pricePayload struct {
	MarketID string `msgpack:"market_id"`
	YesPrice string `msgpack:"yes_price"`
	NoPrice  string `msgpack:"no_price"`
}

// relayEnvelope mirrors the JSON frame Hub.notifySpecial sends to this
// connection whenever a channel gains or loses its last subscriber.
type relayEnvelope struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
}

// Poster holds a persistent, authenticated websocket connection to the
// broadcaster and pushes fresh prices over it as binary frames, bypassing
// the per-market subscriber gate PubSub uses. The same connection also
// receives relayed subscribe/unsubscribe commands, since the broadcaster
// treats this connection as its one OrderService special client.
type Poster struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialPoster connects to the broadcaster at wsURL, completes the
// privileged-uplink handshake with sharedSecret, and starts relaying
// incoming subscribe/unsubscribe commands into subs.
func DialPoster(wsURL, sharedSecret string, subs *MarketSubs) (*Poster, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, err
	}

	handshake := wire.WsMessage{
		Op:      wire.OpHandshake,
		Channel: string(broadcast.OrderService),
		Params:  []byte(sharedSecret),
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, handshake.Encode()); err != nil {
		conn.Close()
		return nil, err
	}

	p := &Poster{conn: conn}
	go p.relayLoop(subs)
	return p, nil
}

// relayLoop reads the broadcaster's subscribe/unsubscribe notifications
// off the uplink connection until it closes, applying each to subs.
func (p *Poster) relayLoop(subs *MarketSubs) {
	for {
		msgType, payload, err := p.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("broadcaster uplink read loop ended")
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var env relayEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Warn().Err(err).Msg("received malformed relay envelope on uplink")
			continue
		}
		subs.ApplyRelay(env.Op, env.Channel)
	}
}

// PostPrice pushes marketID's fresh YES/NO prices to the broadcaster. The
// frame names marketID's PriceUpdateChannel, which the broadcaster publishes
// to as is; the price_poster channel is not used.
func (p *Poster) PostPrice(marketID uuid.UUID, yesPrice, noPrice string) {
	payload, err := msgpack.Marshal(pricePayload{
		MarketID: marketID.String(),
		YesPrice: yesPrice,
		NoPrice:  noPrice,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode price payload")
		return
	}

	frame := wire.WsMessage{
		Op:      wire.OpPost,
		Channel: string(broadcast.PriceUpdateChannel(marketID)),
		Params:  payload,
	}.Encode()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		log.Error().Err(err).Msg("failed to push price to broadcaster uplink")
	}
}

func (p *Poster) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close()
}
