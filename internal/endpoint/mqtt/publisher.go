package mqtt

import (
	"fmt"

	"mqtt-nats-bridge/internal/metrics"
)

// Publish implements endpoint.Domain
func (d *Domain) Publish(topic string, payload []byte, qos byte) error {
	if !d.conn.IsConnected() {
		return fmt.Errorf("not connected to broker")
	}

	token := d.conn.GetClient().Publish(topic, qos, false, payload)
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		d.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncPublishErrors()
		})
		d.logger.Error("failed to publish message",
			"error", err,
			"topic", topic)
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	d.logger.Debug("published message",
		"topic", topic,
		"payloadSize", len(payload))

	return nil
}
