package workflow

// ResolveData controls whether read paths include large or sensitive payload
// fields. Structural fields (IDs, statuses, timestamps, counters) are always
// present.
type ResolveData string

const (
	// ResolveAll returns full payloads. It is the default; the zero value is
	// treated as ResolveAll.
	ResolveAll ResolveData = "all"
	// ResolveNone strips input, output, and error on runs and steps, data on
	// events, and metadata on hooks. Used for list views where payload
	// bandwidth matters.
	ResolveNone ResolveData = "none"
)

// None reports whether payloads should be stripped.
func (r ResolveData) None() bool { return r == ResolveNone }

// Redacted returns a copy of the run without its payload fields.
func (r *Run) Redacted() *Run {
	cp := r.Clone()
	cp.Input = nil
	cp.Output = nil
	cp.Error = ""
	return cp
}

// Redacted returns a copy of the step without its payload fields.
func (s *Step) Redacted() *Step {
	cp := s.Clone()
	cp.Input = nil
	cp.Output = nil
	cp.Error = ""
	return cp
}

// Redacted returns a copy of the event without its payload.
func (e *Event) Redacted() *Event {
	cp := e.Clone()
	cp.Data = nil
	return cp
}

// Redacted returns a copy of the hook without its metadata.
func (h *Hook) Redacted() *Hook {
	cp := h.Clone()
	cp.Metadata = nil
	return cp
}
