package mqtt

import "fmt"

// TopicPrefixTelemetry is the base for all telemetry topics.
const TopicPrefixTelemetry = "knxhost/telemetry"

// TopicPrefixSystem is the base for system topics.
const TopicPrefixSystem = "knxhost/system"

// Topics provides builders for the telemetry sink's MQTT topics.
type Topics struct{}

// Datapoint returns the topic a datapoint's telemetry is published to.
//
// Example: knxhost/telemetry/living-room-light/switch
func (Topics) Datapoint(fb, dp string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixTelemetry, fb, dp)
}

// SystemStatus returns the topic the sink's online/offline status is
// published to, including the LWT message on unexpected disconnect.
//
// Example: knxhost/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
