package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64   `json:"seq"`
	Op     string  `json:"op"`
	Engine string  `json:"engine"`
	Input  string  `json:"input,omitempty"`
	Extra  *string `json:"extra,omitempty"`

	// Status is the result array's status token; empty for free and finalize.
	Status string `json:"status,omitempty"`

	// Items are the result array elements after the status token.
	Items []string `json:"items,omitempty"`

	// Error is the error returned by free or finalize.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every step in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Outstanding is the number of live result arrays after the last step.
	Outstanding int `json:"outstanding"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends ev to the trace.
func (r *Result) AddEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
