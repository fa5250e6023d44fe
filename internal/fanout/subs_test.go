package fanout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMarketSubsAddRemove(t *testing.T) {
	subs := NewMarketSubs()
	marketID := uuid.New()

	assert.False(t, subs.Has(marketID))
	subs.Add(marketID)
	assert.True(t, subs.Has(marketID))
	subs.Remove(marketID)
	assert.False(t, subs.Has(marketID))
}

func TestMarketSubsApplyRelay(t *testing.T) {
	subs := NewMarketSubs()
	marketID := uuid.New()
	channel := "order_book_update:" + marketID.String()

	subs.ApplyRelay("subscribe", channel)
	assert.True(t, subs.Has(marketID))

	subs.ApplyRelay("unsubscribe", channel)
	assert.False(t, subs.Has(marketID))
}

func TestMarketSubsApplyRelayIgnoresUnrelatedChannel(t *testing.T) {
	subs := NewMarketSubs()
	subs.ApplyRelay("subscribe", "price_update:"+uuid.New().String())
	assert.Empty(t, subs.markets)
}
