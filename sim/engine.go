package sim

// TimeTeller reports the simulated time. Components and tracers use it to
// stamp what they observe, such as the RTIO counter and task spans.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler places events on the simulated timeline.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// A SimulationEndHandler runs once the simulation is over, for example to
// flush the tasks that a tracer still holds.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine drives the simulated timeline. The host, the bridge, the memory,
// and the fabric all advance by handling the events it delivers.
type Engine interface {
	Hookable
	EventScheduler

	// Run handles events in time order until none are left.
	Run() error

	// Pause holds the timeline after the event being handled. The monitoring
	// page uses it to inspect a running bridge.
	Pause()

	// Continue lets a paused timeline move on.
	Continue()

	// RegisterSimulationEndHandler adds a handler for Finished to call.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished calls the registered SimulationEndHandlers.
	Finished()
}
