// Package telemetry wires the device's change notifications to the MQTT
// telemetry sink and the InfluxDB history recorder described in
// SPEC_FULL.md §4.8 and §4.11. Both sinks are optional and off by default;
// Sink is a no-op for whichever one isn't configured.
package telemetry

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/knxhost/internal/binding"
	"github.com/nerrad567/knxhost/internal/device"
	"github.com/nerrad567/knxhost/internal/infrastructure/config"
	"github.com/nerrad567/knxhost/internal/infrastructure/influxdb"
	"github.com/nerrad567/knxhost/internal/infrastructure/mqtt"
)

// Logger is the structured logging interface the sink depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink publishes every datapoint change to the configured MQTT broker and
// records it in InfluxDB when the value is a float, int or bool; other
// value types are not written to InfluxDB. Either dependency may be nil,
// in which case that half of the sink is skipped.
type Sink struct {
	mqttClient   *mqtt.Client
	influxClient *influxdb.Client
	logger       Logger
}

// New connects to whichever backend is enabled in cfg. A disabled backend
// yields a nil client for that half of the sink rather than an error —
// history and telemetry are independent, optional features.
func New(ctx context.Context, cfg *config.Config) (*Sink, error) {
	s := &Sink{logger: noopLogger{}}

	if cfg.Telemetry.Enabled {
		client, err := mqtt.Connect(cfg.Telemetry)
		if err != nil {
			return nil, err
		}
		s.mqttClient = client
	}

	if cfg.History.Enabled {
		client, err := influxdb.Connect(ctx, cfg.History)
		if err != nil {
			if s.mqttClient != nil {
				s.mqttClient.Close() //nolint:errcheck // best-effort cleanup on error path
			}
			return nil, err
		}
		s.influxClient = client
	}

	return s, nil
}

// SetLogger sets the logger used to report payload marshalling failures.
func (s *Sink) SetLogger(logger Logger) {
	s.logger = logger
}

// Close releases both backend connections, if present.
func (s *Sink) Close() {
	if s.mqttClient != nil {
		s.mqttClient.Close() //nolint:errcheck // best-effort on shutdown
	}
	if s.influxClient != nil {
		s.influxClient.Close() //nolint:errcheck // best-effort on shutdown
	}
}

// telemetryPayload is the JSON body published for each datapoint change.
type telemetryPayload struct {
	Value any `json:"value"`
}

// RegisterAll subscribes the sink to every woven group object's datapoint,
// via notifier.Register, so every change is forwarded to whichever
// backend(s) are configured. Called once, after the device has woven its
// functional blocks.
func (s *Sink) RegisterAll(notifier *device.Notifier, binder *binding.Binding) {
	for _, e := range binder.Entries() {
		fbName, dpName := e.FBName, e.DPName
		notifier.Register(fbName, dpName, device.ConditionAlways, false, func(event device.ChangeEvent) {
			s.handleChange(fbName, dpName, event.NewValue)
		})
	}
}

func (s *Sink) handleChange(fbName, dpName string, value any) {
	if s.mqttClient != nil {
		payload, err := json.Marshal(telemetryPayload{Value: value})
		if err != nil {
			s.logger.Warn("telemetry: marshalling payload failed", "fb", fbName, "dp", dpName, "error", err)
		} else {
			s.mqttClient.PublishTelemetry(fbName, dpName, payload)
		}
	}

	if s.influxClient != nil {
		if f, ok := numericValue(value); ok {
			s.influxClient.WriteDatapointSample(fbName, dpName, f)
		}
	}
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
