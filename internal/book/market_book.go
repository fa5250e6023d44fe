package book

import (
	"github.com/shopspring/decimal"

	"fenrir/internal/model"
)

var (
	half   = decimal.NewFromFloat(0.5)
	one    = decimal.NewFromInt(1)
	two    = decimal.NewFromInt(2)
	cap095 = decimal.NewFromFloat(0.95)
)

// MarketBook is the pair of outcome books (YES, NO) for one market, plus
// the cached affine-weighted prices and executed-buy-volume counters used
// to refresh them.
//
// https://www.cultivatelabs.com/crowdsourced-forecasting-guide/how-does-logarithmic-market-scoring-rule-lmsr-work
// has useful background on LMSR-style prediction market pricing; the
// formula below is a simplified, non-logarithmic affine approximation of
// it, not the classical LMSR cost function.
type MarketBook struct {
	YesBook *OutcomeBook
	NoBook  *OutcomeBook

	ExecutedYesBuyVolume decimal.Decimal
	ExecutedNoBuyVolume  decimal.Decimal

	CurrentYesPrice decimal.Decimal
	CurrentNoPrice  decimal.Decimal

	// LiquidityB is the market's liquidity parameter. Higher b means more
	// liquidity and slower price movement. b == 0 falls back to a
	// midpoint-of-book pricing scheme.
	LiquidityB decimal.Decimal
}

// NewMarketBook constructs a market book initialized to a 0.5/0.5 price.
func NewMarketBook(liquidityB decimal.Decimal) *MarketBook {
	return &MarketBook{
		YesBook:         NewOutcomeBook(),
		NoBook:          NewOutcomeBook(),
		CurrentYesPrice: half,
		CurrentNoPrice:  half,
		LiquidityB:      liquidityB,
	}
}

func (mb *MarketBook) bookFor(outcome model.Outcome) *OutcomeBook {
	if outcome == model.OutcomeYES {
		return mb.YesBook
	}
	return mb.NoBook
}

// AddOrder rests an order and refreshes cached prices.
func (mb *MarketBook) AddOrder(o *model.Order) {
	mb.bookFor(o.Outcome).AddOrder(o)
	mb.updateMarketPrice()
}

// ProcessOrder matches an order, re-rests it if it still has OPEN or
// PendingUpdate status left over, and refreshes prices.
func (mb *MarketBook) ProcessOrder(o *model.Order) []MatchOutput {
	matches := mb.bookFor(o.Outcome).MatchOrder(o)

	if o.Status == model.OrderStatusOpen || o.Status == model.OrderStatusPendingUpd {
		mb.AddOrder(o)
	} else {
		mb.updateMarketPrice()
	}
	return matches
}

// CreateMarketOrder sizes and matches a market order, tracking executed
// buy volume for the affine pricing formula, and refreshes prices.
func (mb *MarketBook) CreateMarketOrder(o *model.Order, budget decimal.Decimal) []MatchOutput {
	matches := mb.bookFor(o.Outcome).CreateMarketOrder(o, budget)

	if o.Side == model.OrderSideBuy && o.FilledQuantity.IsPositive() {
		executed := decimal.Zero
		for _, m := range matches {
			executed = executed.Add(m.Price.Mul(m.MatchedQuantity))
		}
		if o.Outcome == model.OutcomeYES {
			mb.ExecutedYesBuyVolume = mb.ExecutedYesBuyVolume.Add(executed)
		} else {
			mb.ExecutedNoBuyVolume = mb.ExecutedNoBuyVolume.Add(executed)
		}
	}

	mb.updateMarketPrice()
	return matches
}

// UpdateOrder removes a resting order from oldPrice and mutates it in place
// to newPrice/newQuantity with status OPEN. It does not re-rest the order:
// the caller is expected to run it back through ProcessOrder to re-match and
// re-rest in one canonical pass. Returns false if the order was not resting
// at oldPrice.
func (mb *MarketBook) UpdateOrder(o *model.Order, oldPrice, newPrice, newQuantity decimal.Decimal) bool {
	ok := mb.bookFor(o.Outcome).UpdateOrder(o, oldPrice, newPrice, newQuantity)
	if ok {
		mb.updateMarketPrice()
	}
	return ok
}

// RemoveOrder drops a resting order.
func (mb *MarketBook) RemoveOrder(o *model.Order) bool {
	ok := mb.bookFor(o.Outcome).RemoveOrder(o.ID, o.Side, o.Price)
	if ok {
		mb.updateMarketPrice()
	}
	return ok
}

// GetOrderBook returns the named outcome's book, or nil.
func (mb *MarketBook) GetOrderBook(outcome model.Outcome) *OutcomeBook {
	if outcome != model.OutcomeYES && outcome != model.OutcomeNO {
		return nil
	}
	return mb.bookFor(outcome)
}

func (mb *MarketBook) updateMarketPrice() {
	if mb.LiquidityB.IsPositive() {
		mb.updateWeightedPrice()
	} else {
		mb.updateMidpointPrice()
	}
}

func (mb *MarketBook) updateWeightedPrice() {
	fundsYes := mb.calculateTotalFunds(model.OutcomeYES)
	fundsNo := mb.calculateTotalFunds(model.OutcomeNO)

	totalLiquidity := mb.LiquidityB.Mul(two)
	totalFunds := fundsYes.Add(fundsNo)

	if !totalFunds.IsPositive() {
		mb.CurrentYesPrice = half
		mb.CurrentNoPrice = half
		return
	}

	yesWeight := mb.LiquidityB.Add(fundsYes).Div(totalLiquidity.Add(totalFunds))
	noWeight := mb.LiquidityB.Add(fundsNo).Div(totalLiquidity.Add(totalFunds))
	totalWeight := yesWeight.Add(noWeight)

	mb.CurrentYesPrice = yesWeight.Div(totalWeight)
	mb.CurrentNoPrice = noWeight.Div(totalWeight)
}

// calculateTotalFunds sums only bids (buyers have committed money; sellers
// have committed shares, not funds) plus cumulative executed buy notional.
func (mb *MarketBook) calculateTotalFunds(outcome model.Outcome) decimal.Decimal {
	book := mb.bookFor(outcome)
	bookFunds := decimal.Zero
	book.bids.Scan(func(l *PriceLevel) bool {
		bookFunds = bookFunds.Add(l.Price.Mul(l.TotalQuantity))
		return true
	})

	executed := mb.ExecutedYesBuyVolume
	if outcome == model.OutcomeNO {
		executed = mb.ExecutedNoBuyVolume
	}
	return bookFunds.Add(executed)
}

func (mb *MarketBook) updateMidpointPrice() {
	yesMid, yesOk := mb.midpointPrice(mb.YesBook)
	noMid, noOk := mb.midpointPrice(mb.NoBook)

	switch {
	case yesOk && noOk:
		total := yesMid.Add(noMid)
		if total.IsPositive() {
			mb.CurrentYesPrice = yesMid.Div(total)
			mb.CurrentNoPrice = noMid.Div(total)
		} else {
			mb.CurrentYesPrice = half
			mb.CurrentNoPrice = half
		}
	case yesOk:
		mb.CurrentYesPrice = decimal.Min(yesMid, cap095)
		mb.CurrentNoPrice = one.Sub(mb.CurrentYesPrice)
	case noOk:
		mb.CurrentNoPrice = decimal.Min(noMid, cap095)
		mb.CurrentYesPrice = one.Sub(mb.CurrentNoPrice)
	default:
		mb.CurrentYesPrice = half
		mb.CurrentNoPrice = half
	}
}

func (mb *MarketBook) midpointPrice(ob *OutcomeBook) (decimal.Decimal, bool) {
	bid, bidOk := ob.BestBid()
	ask, askOk := ob.BestAsk()
	switch {
	case bidOk && askOk:
		return bid.Price.Add(ask.Price).Div(two), true
	case bidOk:
		return bid.Price, true
	case askOk:
		return ask.Price, true
	default:
		return decimal.Zero, false
	}
}
