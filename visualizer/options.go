package visualizer

// Options configures the diagram output.
type Options struct {
	// Direction controls diagram flow: "TD" (top-down) or "LR" (left-right).
	Direction string

	// HighlightPath highlights these states. When ShowPath is set and no
	// highlight is given, the machine's visited path is used.
	HighlightPath []string

	// ShowPath draws the transitions actually taken, including jumps.
	ShowPath bool
}

// DefaultOptions returns a top-down diagram of the visited path.
func DefaultOptions() Options {
	return Options{
		Direction: "TD",
		ShowPath:  true,
	}
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithShowPath enables or disables drawing the visited transitions.
func (o Options) WithShowPath(show bool) Options {
	o.ShowPath = show

	return o
}
