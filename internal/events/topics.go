package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated      = "order.created"
	TopicOrderCancelled    = "order.cancelled"
	TopicSellerVerified    = "seller.verified"
	TopicSellerRejected    = "seller.rejected"
	TopicShipmentUpdated   = "shipment.updated"
	TopicShipmentDelivered = "shipment.delivered"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderCancelled,
		TopicSellerVerified,
		TopicSellerRejected,
		TopicShipmentUpdated,
		TopicShipmentDelivered,
	}
}
