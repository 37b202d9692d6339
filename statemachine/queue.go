package statemachine

// Queue batches transitions that all land in one final state.
//
// A parallel queue starts every action in the same tick and enters final
// once each has completed. A success always counts as completion; an error
// counts only for specs with an explicit Error target, since any other
// failure bubbles and cancels the rest of the batch.
//
// A serial queue starts one action at a time, each after the previous one's
// handler has run, and enters final after the last.
type Queue struct {
	machine   *Machine
	final     string
	serial    bool
	specs     []Spec
	started   bool
	completed int
}

func newQueue(m *Machine, final string, serial bool) *Queue {
	return &Queue{machine: m, final: final, serial: serial}
}

// Add appends specs. It fails once the queue has started.
func (q *Queue) Add(specs ...Spec) error {
	if q.started {
		return ErrQueueStarted
	}

	for _, spec := range specs {
		if spec.Action == nil {
			return ErrNilAction
		}
	}

	q.specs = append(q.specs, specs...)

	return nil
}

// Len returns the number of specs.
func (q *Queue) Len() int {
	return len(q.specs)
}

// Completed returns how many specs have counted as complete.
func (q *Queue) Completed() int {
	return q.completed
}

// Started reports whether Start was called.
func (q *Queue) Started() bool {
	return q.started
}

// Start wires the queue into its machine. An empty queue enters final
// immediately. Starting twice returns ErrQueueStarted.
func (q *Queue) Start() error {
	if q.started {
		return ErrQueueStarted
	}

	q.started = true

	if len(q.specs) == 0 {
		q.machine.TransitionTo(q.final)

		return nil
	}

	if q.serial {
		q.wire(0)

		return nil
	}

	for i := range q.specs {
		q.wire(i)
	}

	return nil
}

// wire hands spec i to the machine. The completion listener is registered
// after the machine's own, so it runs once the spec's handler has returned.
func (q *Queue) wire(i int) {
	spec := q.specs[i]

	q.machine.Transition(spec)

	done := func() {
		q.completed++

		if q.serial && i+1 < len(q.specs) {
			q.wire(i + 1)

			return
		}

		if q.completed == len(q.specs) {
			q.machine.TransitionTo(q.final)
		}
	}

	spec.Action.OnSuccess(func(...any) { done() })

	if spec.Error != "" {
		spec.Action.OnError(func(error) { done() })
	}
}

// Cancel cancels every spec's action, including ones not yet started.
func (q *Queue) Cancel() {
	for _, spec := range q.specs {
		spec.Action.Cancel()
	}
}
