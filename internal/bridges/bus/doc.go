// Package bus connects the intercom state machine to the MQTT bus.
//
// Inbound, collaborators publish events to intercom/{id}/event/{kind}:
//
//	intercom/front-door/event/button_pressed
//	intercom/front-door/event/setup_task_done   {"task":"servo"}
//
// The payload is optional JSON (EventMessage); setup_task_done needs its
// task field. Each valid event is applied to the shared Controller.
//
// Outbound, every state change is published retained to
// intercom/{id}/state as a StateMessage, and the servo driver is told
// where to move on intercom/{id}/command/servo: the active angle when the
// door starts moving, the inactive angle when it returns to waiting.
package bus
