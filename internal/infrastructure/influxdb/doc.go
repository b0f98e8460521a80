// Package influxdb records device state transitions in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Data Model
//
// Every committed state change becomes one point:
//
//	device_state,device_id=<uuid>,from_state=AVAILABLE,to_state=IN_USE in_use=1i
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // time-series recording switched off
//	}
//	defer client.Close()
//
//	registry.SetStateRecorder(client)
//
// # Error Handling
//
// Writes never block the caller. Batch failures are delivered to the
// callback registered with SetOnError. Connection and health check errors
// are returned directly.
package influxdb
