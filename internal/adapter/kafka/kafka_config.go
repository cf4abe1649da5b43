package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// NewGroup builds the consumer group for the fulfillment shipment feed.
// Offsets start from the oldest retained message rather than the
// newest: shipment transitions are guarded, so replaying history after
// downtime is harmless, while skipping ahead would silently drop status
// changes that happened while the service was down.
func NewGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Net.DialTimeout = 5 * time.Second
	return sarama.NewConsumerGroup(brokers, groupID, cfg)
}
