package intercom

// Logger defines the logging interface used by the engine.
// Compatible with logging.Logger and slog.Logger.
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

// transitionKey identifies one row of the fixed transition table.
type transitionKey struct {
	from State
	kind EventKind
}

// transitions holds every transition except setup completion, which
// depends on the outstanding task set.
var transitions = map[transitionKey]State{
	// Button ring
	{StateWaiting, EventButtonPressed}:         StateSettingInactive,
	{StateSettingInactive, EventButtonPressed}: StateSettingActive,
	{StateSettingActive, EventButtonPressed}:   StateWaiting,

	// Opening
	{StateWaiting, EventRequestOpen}:       StateMoving,
	{StateMoving, EventOpenMotionComplete}: StateWaiting,
}

// Engine is the intercom state machine.
//
// It owns the current state, the set of outstanding setup tasks, the two
// actuator angles and the publisher used to announce state changes. It is
// not safe for concurrent use; see Controller.
type Engine struct {
	state         State
	pending       map[SetupTask]struct{}
	inactiveAngle Angle
	activeAngle   Angle
	changes       Publisher[State]
	logger        Logger
}

// NewEngine creates an engine in StateSetup with every known setup task
// outstanding and the default angles.
func NewEngine(changes Publisher[State]) *Engine {
	return NewEngineWithAngles(changes, DefaultInactiveAngle, DefaultActiveAngle)
}

// NewEngineWithAngles is NewEngine with explicit closed (inactive) and open
// (active) actuator positions.
func NewEngineWithAngles(changes Publisher[State], inactive, active Angle) *Engine {
	pending := make(map[SetupTask]struct{}, len(AllSetupTasks()))
	for _, task := range AllSetupTasks() {
		pending[task] = struct{}{}
	}

	return &Engine{
		state:         StateSetup,
		pending:       pending,
		inactiveAngle: inactive,
		activeAngle:   active,
		changes:       changes,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger used for anomaly and transition reports.
// A nil logger disables logging.
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// ApplyEvent feeds one event into the state machine.
//
// The next state comes from the transition table. Pairs absent from the
// table leave the state unchanged and are logged as unhandled; a setup
// completion for a task that is not outstanding is logged and otherwise
// ignored. When the state changes, the new state is sent on the publish
// channel exactly once.
func (e *Engine) ApplyEvent(ev Event) {
	prev := e.state

	switch {
	case e.state == StateSetup && ev.Kind == EventSetupTaskDone:
		e.completeSetupTask(ev.Task)

	default:
		next, ok := transitions[transitionKey{from: e.state, kind: ev.Kind}]
		if !ok {
			e.logger.Warn("unhandled state change",
				"state", e.state,
				"event", ev.String(),
			)
			return
		}
		e.state = next
	}

	if e.state == prev {
		return
	}

	e.logger.Info("state change",
		"from", prev,
		"event", ev.String(),
		"to", e.state,
	)
	if e.changes != nil {
		receivers := e.changes.Send(e.state)
		e.logger.Debug("state published", "state", e.state, "receivers", receivers)
	}
}

// completeSetupTask removes task from the outstanding set and leaves
// StateSetup once the set is empty.
func (e *Engine) completeSetupTask(task SetupTask) {
	if _, ok := e.pending[task]; !ok {
		e.logger.Warn("setup task not pending",
			"task", task,
			"pending", e.PendingSetupTasks(),
		)
	} else {
		delete(e.pending, task)
		e.logger.Debug("setup task completed", "task", task, "remaining", len(e.pending))
	}

	if len(e.pending) == 0 {
		e.state = StateWaiting
	}
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// InactiveAngle returns the actuator's closed position.
func (e *Engine) InactiveAngle() Angle {
	return e.inactiveAngle
}

// ActiveAngle returns the actuator's open position.
func (e *Engine) ActiveAngle() Angle {
	return e.activeAngle
}

// PendingSetupTasks returns the outstanding setup tasks sorted by name.
// The slice is empty once setup has finished.
func (e *Engine) PendingSetupTasks() []SetupTask {
	tasks := make([]SetupTask, 0, len(e.pending))
	for task := range e.pending {
		tasks = append(tasks, task)
	}
	sortTasks(tasks)
	return tasks
}
