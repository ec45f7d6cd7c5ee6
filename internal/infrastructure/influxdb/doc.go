// Package influxdb provides InfluxDB connectivity for the datapoint history recorder.
//
// It wraps the official influxdb-client-go v2 library with knxhost-specific
// patterns for connection management, point writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for datapoint value changes: every
// "change" or "always" notifier fire is written as a point in the "datapoint"
// measurement, tagged by functional block and datapoint name.
//
// # Usage
//
//	cfg := config.HistoryConfig{
//	    InfluxURL:    "http://localhost:8086",
//	    InfluxToken:  "your-token",
//	    InfluxOrg:    "knxhost",
//	    InfluxBucket: "datapoints",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDatapointSample("living-room-light", "switch", 1.0)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to the history section of config.yaml
// (batch_size, flush_interval), reducing network overhead for
// high-frequency bus traffic.
package influxdb
