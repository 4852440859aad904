// Package intercom implements the door-intercom control logic.
//
// The Engine is a small state machine. It consumes discrete events (setup
// completion, button presses, open requests, motion completion), decides the
// next state from a fixed transition table and publishes every actual state
// change on a Broadcaster so that collaborators such as the servo driver or
// the MQTT bridge can react.
//
// State diagram:
//
//	        SetupTaskDone (last task)
//	Setup ───────────────────────────▶ Waiting ◀────────────────────┐
//	                                   │  ▲  │                      │
//	                      RequestOpen  │  │  │ ButtonPressed        │ ButtonPressed
//	                                   ▼  │  ▼                      │
//	                              Moving ─┘  SettingInactive ──▶ SettingActive
//	                        OpenMotionComplete          ButtonPressed
//
// Any (state, event) pair absent from the table is ignored and reported as
// an anomaly. The engine never fails.
//
// # Thread Safety
//
// Engine is not safe for concurrent use. Wrap it in a Controller, which
// holds a mutex for the duration of exactly one ApplyEvent call. Broadcaster
// and Subscription are safe for concurrent use.
//
// # Usage
//
//	changes := intercom.NewBroadcaster[intercom.State](intercom.DefaultChannelCapacity)
//	ctrl := intercom.NewController(intercom.NewEngine(changes), changes)
//
//	sub := ctrl.Subscribe()
//	defer sub.Close()
//
//	ctrl.Apply(intercom.SetupTaskDone(intercom.TaskServo))
//	ctrl.Apply(intercom.SetupTaskDone(intercom.TaskNetworkInterface))
//
//	state, err := sub.Recv(ctx) // intercom.StateWaiting
package intercom
