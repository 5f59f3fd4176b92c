package kafka

// Topic definitions for Kafka event streaming
const (
	// Whale order lifecycle events
	TopicOrderCreated = "whales.orders.created"
	TopicOrderFilled  = "whales.orders.filled"
	TopicOrderDeleted = "whales.orders.deleted"

	// Market data events
	TopicLiquidityUpdate = "whales.liquidity"
	TopicPriceUpdate     = "whales.prices"
)
