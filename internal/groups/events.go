package groups

// Event reports a change to one entry: a state transition, a refresh
// starting, or a failure. Version is the roster version after the change.
type Event struct {
	Entry   Entry  `json:"entry"`
	Version uint64 `json:"version"`
}

// Subscribe registers for entry change events. The channel holds up to
// buffer pending events; a subscriber that falls further behind misses
// events rather than stalling the pipeline. The channel is closed by the
// returned cancel function or by Close.
func (p *Pipeline) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = ch

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subscribers[id]; ok {
			close(sub)
			delete(p.subscribers, id)
		}
	}
}

// changed publishes entry i's new view to subscribers and the state gauges.
// Callers hold p.mu.
func (p *Pipeline) changed(i int, e *entry) {
	p.publishStates()
	if len(p.subscribers) == 0 {
		return
	}
	ev := Event{Entry: p.view(i, e), Version: p.version}
	for id, ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
			p.logger.Debug("subscriber behind, event dropped", "subscriber", id, "group", e.group.Label)
		}
	}
}
