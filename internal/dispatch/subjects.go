package dispatch

// Subject names the dispatcher's durable pull consumer is bound to via
// the "order.>" wildcard on the ORDER stream.
const (
	SubjectCreate              = "order.create"
	SubjectCancel              = "order.cancel"
	SubjectUpdate              = "order.update"
	SubjectMarketOrderCreate   = "order.market_order_create"
	SubjectInitializeOrderBook = "order.initialize_order_book"
	SubjectFinalizeMarket      = "order.finalize_market"
)
