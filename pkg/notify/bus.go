package notify

// Bus is the common interface both transports satisfy.
type Bus interface {
	Emit(m Message) error
	Recv() (Message, error)
	Close() error
}

// Emitter adapts a Bus into a store.Notifier (Publish(recv uint64)),
// stamping every emission with the local environment id and process id.
type Emitter struct {
	bus    Bus
	envID  [8]byte
	pid    uint32
}

// NewEmitter wraps bus as a store.Notifier. envID may be the zero value if
// the owning store's id is not yet known; call SetEnvID once it is, before
// the first Publish.
func NewEmitter(bus Bus, envID [8]byte, pid uint32) *Emitter {
	return &Emitter{bus: bus, envID: envID, pid: pid}
}

// SetEnvID updates the id stamped on every subsequent emission. Used when
// the bus must be constructed before the store's persistent id is loaded.
func (e *Emitter) SetEnvID(envID [8]byte) {
	e.envID = envID
}

// Publish implements store.Notifier.
func (e *Emitter) Publish(recv uint64) {
	_ = e.bus.Emit(Message{EnvID: e.envID, OriginPID: e.pid, HighWaterRecv: recv})
}
