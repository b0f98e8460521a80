package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this package.
const (
	MeasurementDeviceState = "device_state"
)

// RecordStateChange writes a device state transition to InfluxDB.
//
// The point is tagged with the device and both states so dashboards can
// group by either side of the transition. The in_use field is 1 while the
// device is IN_USE, which makes utilisation a simple mean over time.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Calls on a disconnected client are dropped.
//
// Example:
//
//	client.RecordStateChange("6f1c...", "AVAILABLE", "IN_USE", time.Now())
func (c *Client) RecordStateChange(deviceID string, from, to string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(stateChangePoint(deviceID, from, to, at))
}

// stateChangePoint builds the device_state point for a transition.
func stateChangePoint(deviceID, from, to string, at time.Time) *write.Point {
	inUse := 0
	if to == "IN_USE" {
		inUse = 1
	}

	tags := map[string]string{
		"device_id": deviceID,
		"to_state":  to,
	}
	// Creation has no previous state.
	if from != "" {
		tags["from_state"] = from
	}

	return write.NewPoint(
		MeasurementDeviceState,
		tags,
		map[string]interface{}{
			"in_use": inUse,
		},
		at,
	)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
