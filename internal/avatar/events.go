package avatar

// Dispatcher routes remote-originated events to their local effects. One
// dispatcher is registered per remote session; its generation pins every
// effect to the session it was created for, so events from a superseded
// session fall through the manager's compare-and-set guards.
type Dispatcher struct {
	handlers map[EventType]func(Event)
	done     chan struct{}
}

func newDispatcher(m *Manager, gen uint64) *Dispatcher {
	return &Dispatcher{
		handlers: map[EventType]func(Event){
			EventStreamReady:       func(e Event) { m.attachMedia(gen, e.Media) },
			EventTalkingStarted:    func(Event) { m.setAvatarTalking(gen, true) },
			EventTalkingStopped:    func(Event) { m.setAvatarTalking(gen, false) },
			EventUserSpeechStarted: func(Event) { m.setUserTalking(gen, true) },
			EventUserSpeechStopped: func(Event) { m.setUserTalking(gen, false) },
			EventDisconnected:      func(Event) { m.forceStopped(gen) },
		},
		done: make(chan struct{}),
	}
}

// run consumes the session's event channel until the remote closes it.
// Handlers are small state updates and must not block.
func (d *Dispatcher) run(events <-chan Event) {
	defer close(d.done)
	for e := range events {
		if h, ok := d.handlers[e.Type]; ok {
			h(e)
		}
	}
}

// Done closes once the event stream has drained.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }
