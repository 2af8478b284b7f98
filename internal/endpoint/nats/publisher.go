package nats

import (
	"fmt"

	"mqtt-nats-bridge/internal/metrics"
)

// Publish implements endpoint.Domain. QoS is unused; NATS delivery is
// at-most-once per core semantics.
func (d *Domain) Publish(topic string, payload []byte, qos byte) error {
	if !d.conn.IsConnected() {
		return fmt.Errorf("not connected to NATS server")
	}

	subject := ToNATSSubject(topic)

	if err := d.conn.GetConnection().Publish(subject, payload); err != nil {
		d.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncPublishErrors()
		})
		d.logger.Error("failed to publish message",
			"error", err,
			"topic", topic,
			"subject", subject)
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	d.logger.Debug("published message",
		"topic", topic,
		"subject", subject,
		"payloadSize", len(payload))

	return nil
}
