package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDatapointSample writes a single datapoint value change to InfluxDB.
//
// This is the primary method the notifier's history recorder calls on
// every "change" or "always" condition fire. The write is non-blocking;
// points are batched and flushed on the configured interval.
//
// Parameters:
//   - fb: the functional block name the datapoint belongs to
//   - dp: the datapoint name within that block
//   - value: the decoded DPT value as a float64
//
// Example:
//
//	client.WriteDatapointSample("living-room-light", "switch", 1.0)
//	client.WriteDatapointSample("outside-sensor", "temperature", 21.5)
func (c *Client) WriteDatapointSample(fb string, dp string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"datapoint",
		map[string]string{
			"fb": fb,
			"dp": dp,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteDatapointSample.
//
// Parameters:
//   - measurement: the measurement name (table)
//   - tags: key-value pairs for indexing (low cardinality)
//   - fields: key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g. replaying a backfill).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
