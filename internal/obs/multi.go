package obs

// MultiEmitter fans one Event out to several Emitters, so the orchestrator
// can log and trace every job event without choosing between them at
// construction time.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter combines the given emitters, skipping any nil entries.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	filtered := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return &MultiEmitter{emitters: filtered}
}

// Emit forwards the event to every wrapped emitter in order.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
