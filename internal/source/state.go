package source

// State is the lifecycle state of a video source instance.
// States are ordered; transitions walk one step at a time.
type State int

const (
	// StateNull is the uninitialized state. No resources are held.
	StateNull State = iota
	// StateReady means the instance has opened its resources and is
	// known to be usable. Probing targets this state.
	StateReady
	// StatePaused means the instance is prepared to produce frames.
	StatePaused
	// StatePlaying means the instance is actively producing frames.
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// next returns the adjacent state one step toward target.
func (s State) next(target State) State {
	if target > s {
		return s + 1
	}
	return s - 1
}
