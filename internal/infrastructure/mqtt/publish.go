package mqtt

import "fmt"

// maxPayloadSize is the maximum telemetry payload size (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishTelemetry publishes a datapoint's telemetry payload (typically
// JSON) to knxhost/telemetry/{fb}/{dp} at the configured QoS, unretained —
// subscribers only care about the live stream, not the last value.
//
// Publish errors are passed to the logger set via SetLogger, if any; the
// notifier treats telemetry delivery as best-effort and does not block or
// retry on failure.
func (c *Client) PublishTelemetry(fb, dp string, payload []byte) {
	topic := Topics{}.Datapoint(fb, dp)
	if err := c.Publish(topic, payload, byte(c.cfg.QoS), false); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("telemetry publish failed", "topic", topic, "error", err)
		}
	}
}
