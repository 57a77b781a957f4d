package sim

// Middleware is one stage of a component's per-cycle work. The bridge, for
// example, moves memory traffic in one stage and walks its state machine in
// another.
type Middleware interface {
	// Tick runs the stage for one cycle. It returns true if the stage changed
	// anything, which keeps the component ticking on the next cycle.
	Tick() bool
}

// MiddlewareHolder runs its middlewares in the order they were added.
type MiddlewareHolder struct {
	middlewares []Middleware
}

// AddMiddleware appends a stage.
func (holder *MiddlewareHolder) AddMiddleware(middleware Middleware) {
	holder.middlewares = append(holder.middlewares, middleware)
}

// Middlewares returns the stages in run order.
func (holder *MiddlewareHolder) Middlewares() []Middleware {
	return holder.middlewares
}

// Tick runs every stage once, even after one of them made progress, so that a
// later stage sees the same cycle as an earlier one.
func (holder *MiddlewareHolder) Tick() bool {
	progress := false

	for _, middleware := range holder.middlewares {
		progress = middleware.Tick() || progress
	}

	return progress
}
