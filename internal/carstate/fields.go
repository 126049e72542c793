package carstate

// The accessors below must be called while the caller holds the lock
// (via State.Lock); no block field is read or written unlocked.

func (s *State) Status() Status {
	return Status(getFixedString(s.block.status[:]))
}

func (s *State) SetStatus(v Status) {
	setFixedString(s.block.status[:], string(v))
}

func (s *State) CurrentFloor() string {
	return getFixedString(s.block.currentFloor[:])
}

func (s *State) SetCurrentFloor(label string) {
	setFixedString(s.block.currentFloor[:], label)
}

func (s *State) DestinationFloor() string {
	return getFixedString(s.block.destinationFloor[:])
}

func (s *State) SetDestinationFloor(label string) {
	setFixedString(s.block.destinationFloor[:], label)
}

func (s *State) OpenButton() bool { return s.block.openButton != 0 }
func (s *State) SetOpenButton(v bool) { s.block.openButton = boolToFlag(v) }

func (s *State) CloseButton() bool { return s.block.closeButton != 0 }
func (s *State) SetCloseButton(v bool) { s.block.closeButton = boolToFlag(v) }

func (s *State) DoorObstruction() bool { return s.block.doorObstruction != 0 }
func (s *State) SetDoorObstruction(v bool) { s.block.doorObstruction = boolToFlag(v) }

func (s *State) Overload() bool { return s.block.overload != 0 }
func (s *State) SetOverload(v bool) { s.block.overload = boolToFlag(v) }

func (s *State) EmergencyStop() bool { return s.block.emergencyStop != 0 }
func (s *State) SetEmergencyStop(v bool) { s.block.emergencyStop = boolToFlag(v) }

func (s *State) IndividualServiceMode() bool { return s.block.individualService != 0 }
func (s *State) SetIndividualServiceMode(v bool) { s.block.individualService = boolToFlag(v) }

func (s *State) EmergencyMode() bool { return s.block.emergencyMode != 0 }
func (s *State) SetEmergencyMode(v bool) { s.block.emergencyMode = boolToFlag(v) }

func (s *State) SafetySystem() int { return int(s.block.safetySystem) }
func (s *State) SetSafetySystem(v int) { s.block.safetySystem = uint32(v) }

// FlagsValid reports whether every boolean flag word holds exactly 0
// or 1. The getters above accept any nonzero word as true, so a
// corrupted flag written by another process is only caught here.
func (s *State) FlagsValid() bool {
	for _, w := range []uint32{
		s.block.openButton,
		s.block.closeButton,
		s.block.doorObstruction,
		s.block.overload,
		s.block.emergencyStop,
		s.block.individualService,
		s.block.emergencyMode,
	} {
		if w > 1 {
			return false
		}
	}
	return true
}

// Name returns the car name this block belongs to.
func (s *State) Name() string { return s.name }
