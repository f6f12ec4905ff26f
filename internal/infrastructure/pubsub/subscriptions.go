package pubsub

import "github.com/autoshop/backend/internal/domain/billing"

// WorkOrderCompletedRoute receives work_order.completed deliveries
const WorkOrderCompletedRoute = "/events/work-order-completed"

// Subscription asks the sidecar to deliver a topic to a route
type Subscription struct {
	PubSubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

// Subscriptions lists the topics the billing service consumes
func Subscriptions(pubsubName string) []Subscription {
	return []Subscription{
		{
			PubSubName: pubsubName,
			Topic:      billing.TopicWorkOrderCompleted,
			Route:      WorkOrderCompletedRoute,
		},
	}
}
