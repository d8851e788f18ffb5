package domain

// EventLog buffers the events raised while a command runs. It is owned by
// a single Submission and is not safe for concurrent use.
type EventLog struct {
	events []Event
}

func (l *EventLog) Append(e Event) {
	l.events = append(l.events, e)
}

// Events returns the buffered events in append order.
func (l *EventLog) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *EventLog) Len() int {
	return len(l.events)
}

func (l *EventLog) Clear() {
	l.events = nil
}
