// Package mqtt provides MQTT client connectivity for the intercom core.
//
// The intercom speaks MQTT to its collaborators: button and open-request
// sources publish events, the servo driver receives move commands and
// reports readiness and motion completion, and any display or home
// automation system can follow the retained state topic.
//
//	button / remote ─┐                         ┌─▶ intercom/{id}/state (retained)
//	servo driver ────┼─▶ intercom/{id}/event/+ │
//	                 │        Intercom Core ───┼─▶ intercom/{id}/command/servo
//	                 └──────────────────────── └─▶ intercom/system/status (LWT)
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and size validation
//   - Subscriptions that are restored after reconnect
//   - Last Will and Testament for offline detection
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{DeviceID: cfg.Device.ID}
//	err = client.Subscribe(topics.AllEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        kind, _ := topics.EventKind(topic)
//	        log.Info("event received", "kind", kind)
//	        return nil
//	    })
//
// TLS must be enabled (cfg.Broker.TLS) whenever the broker is not on the
// same host as the intercom.
package mqtt
