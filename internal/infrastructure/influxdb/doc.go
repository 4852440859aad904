// Package influxdb provides optional InfluxDB telemetry for the intercom core.
//
// Every state change observed by the history recorder is written as a point
// in the intercom_state measurement, tagged with the device and the new
// state. This gives a time series of door openings and setup progress that
// can be graphed alongside other building telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	} else if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; errors arrive through SetOnError.
package influxdb
