package intercom

import "sync"

// Controller is the shared, lock-protected handle around a single Engine.
//
// Event producers (button handler, servo driver, network setup, MQTT bridge)
// run in independent goroutines. Apply holds the lock for exactly one
// ApplyEvent call and nothing else, so the critical section is bounded by
// the engine's own work plus a non-blocking publish.
//
// Thread Safety: All methods are safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	engine  *Engine
	changes *Broadcaster[State]
}

// NewController wraps engine. changes must be the Broadcaster the engine
// publishes to; it is used to hand out subscriptions.
func NewController(engine *Engine, changes *Broadcaster[State]) *Controller {
	return &Controller{
		engine:  engine,
		changes: changes,
	}
}

// Apply delivers ev to the engine and returns the resulting state.
func (c *Controller) Apply(ev Event) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.engine.ApplyEvent(ev)
	return c.engine.State()
}

// State returns the engine's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.State()
}

// InactiveAngle returns the actuator's closed position.
func (c *Controller) InactiveAngle() Angle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.InactiveAngle()
}

// ActiveAngle returns the actuator's open position.
func (c *Controller) ActiveAngle() Angle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.ActiveAngle()
}

// PendingSetupTasks returns the outstanding setup tasks.
func (c *Controller) PendingSetupTasks() []SetupTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.PendingSetupTasks()
}

// Subscribe registers a new consumer of state changes.
func (c *Controller) Subscribe() *Subscription[State] {
	return c.changes.Subscribe()
}
