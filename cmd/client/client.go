// client is a small CLI for pushing test order commands onto the ORDER
// stream, standing in for what would otherwise be a full REST/gRPC
// front door. It talks NATS directly rather than any server socket.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"fenrir/internal/dispatch"
	"fenrir/internal/model"
)

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	action := flag.String("action", "place", "Action to perform: ['place', 'market', 'cancel', 'update']")

	marketIDStr := flag.String("market", "", "Market UUID (compulsory)")
	userIDStr := flag.String("user", "", "User UUID (a random one is generated if empty)")
	outcomeStr := flag.String("outcome", "yes", "Outcome: 'yes' or 'no'")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	price := flag.String("price", "0.5", "Limit price")
	qty := flag.String("qty", "10", "Quantity")
	budget := flag.String("budget", "100", "Market order budget")

	orderIDStr := flag.String("order", "", "Order UUID to cancel/update")

	flag.Parse()

	if *marketIDStr == "" && *action != "cancel" && *action != "update" {
		fmt.Println("Error: -market is compulsory for place/market actions.")
		flag.Usage()
		os.Exit(1)
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer nc.Close()

	outcome := model.OutcomeYES
	if strings.ToLower(*outcomeStr) == "no" {
		outcome = model.OutcomeNO
	}
	side := model.OrderSideBuy
	if strings.ToLower(*sideStr) == "sell" {
		side = model.OrderSideSell
	}

	switch strings.ToLower(*action) {
	case "place":
		publishCreate(nc, dispatch.SubjectCreate, *marketIDStr, *userIDStr, outcome, side, *price, *qty, "0")
	case "market":
		publishCreate(nc, dispatch.SubjectMarketOrderCreate, *marketIDStr, *userIDStr, outcome, side, "0", "0", *budget)
	case "cancel":
		if *orderIDStr == "" {
			log.Fatal().Msg("-order is required for cancel")
		}
		publishCancel(nc, *orderIDStr)
	case "update":
		if *orderIDStr == "" {
			log.Fatal().Msg("-order is required for update")
		}
		publishUpdate(nc, *orderIDStr, *price, *qty)
	default:
		log.Fatal().Str("action", *action).Msg("unknown action")
	}

	if err := nc.FlushTimeout(nc.Opts.Timeout); err != nil {
		log.Warn().Err(err).Msg("flush before exit failed")
	}
}

func mustUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.New()
	}
	id, err := uuid.Parse(s)
	if err != nil {
		log.Fatal().Err(err).Str("value", s).Msg("invalid uuid")
	}
	return id
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatal().Err(err).Str("value", s).Msg("invalid decimal")
	}
	return d
}

type createCmd struct {
	OrderID  uuid.UUID       `msgpack:"order_id"`
	MarketID uuid.UUID       `msgpack:"market_id"`
	UserID   uuid.UUID       `msgpack:"user_id"`
	Outcome  model.Outcome   `msgpack:"outcome"`
	Side     model.OrderSide `msgpack:"side"`
	Price    decimal.Decimal `msgpack:"price"`
	Quantity decimal.Decimal `msgpack:"quantity"`
	Budget   decimal.Decimal `msgpack:"budget"`
}

func publishCreate(nc *nats.Conn, subject, marketID, userID string, outcome model.Outcome, side model.OrderSide, price, qty, budget string) {
	cmd := createCmd{
		OrderID:  uuid.New(),
		MarketID: mustUUID(marketID),
		UserID:   mustUUID(userID),
		Outcome:  outcome,
		Side:     side,
		Price:    mustDecimal(price),
		Quantity: mustDecimal(qty),
		Budget:   mustDecimal(budget),
	}
	data, err := msgpack.Marshal(cmd)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode command")
	}
	if err := nc.Publish(subject, data); err != nil {
		log.Fatal().Err(err).Msg("failed to publish command")
	}
	fmt.Printf("-> published %s: order=%s market=%s\n", subject, cmd.OrderID, cmd.MarketID)
}

type cancelCmd struct {
	OrderID uuid.UUID `msgpack:"order_id"`
}

func publishCancel(nc *nats.Conn, orderID string) {
	data, err := msgpack.Marshal(cancelCmd{OrderID: mustUUID(orderID)})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode command")
	}
	if err := nc.Publish(dispatch.SubjectCancel, data); err != nil {
		log.Fatal().Err(err).Msg("failed to publish command")
	}
	fmt.Printf("-> published %s: order=%s\n", dispatch.SubjectCancel, orderID)
}

type updateCmd struct {
	OrderID  uuid.UUID       `msgpack:"order_id"`
	Price    decimal.Decimal `msgpack:"price"`
	Quantity decimal.Decimal `msgpack:"quantity"`
}

func publishUpdate(nc *nats.Conn, orderID, price, qty string) {
	data, err := msgpack.Marshal(updateCmd{
		OrderID:  mustUUID(orderID),
		Price:    mustDecimal(price),
		Quantity: mustDecimal(qty),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode command")
	}
	if err := nc.Publish(dispatch.SubjectUpdate, data); err != nil {
		log.Fatal().Err(err).Msg("failed to publish command")
	}
	fmt.Printf("-> published %s: order=%s\n", dispatch.SubjectUpdate, orderID)
}
