// Package panel implements the internal service panel's one-shot
// shared-memory mutation: attach, lock, set one flag or the
// destination floor (service_on also clears emergency mode),
// broadcast, unlock.
package panel

import (
	"fmt"

	"github.com/elevatorctl/control-plane/internal/carstate"
	"github.com/elevatorctl/control-plane/internal/floorlabel"
)

// Operation names accepted on the command line.
const (
	OpOpen       = "open"
	OpClose      = "close"
	OpStop       = "stop"
	OpServiceOn  = "service_on"
	OpServiceOff = "service_off"
	OpUp         = "up"
	OpDown       = "down"
)

// ErrInvalidOperation is returned for any operation name outside the
// seven defined above.
var ErrInvalidOperation = fmt.Errorf("panel: invalid operation")

// ErrServiceModeRequired is returned for up/down when the car is not
// in individual service mode.
var ErrServiceModeRequired = fmt.Errorf("panel: operation only allowed in service mode")

// ErrCarMoving is returned for up/down while the car is Between
// floors.
var ErrCarMoving = fmt.Errorf("panel: operation not allowed while elevator is moving")

// ErrDoorsOpen is returned for up/down while the car's status is
// anything other than Closed.
var ErrDoorsOpen = fmt.Errorf("panel: operation not allowed while doors are open")

// Apply attaches carName's shared block and performs op. up and down
// check their preconditions in order: service mode, then moving, then
// doors-open.
func Apply(carName, op string) error {
	shared, err := carstate.Open(carName)
	if err != nil {
		return fmt.Errorf("panel: attach car %s: %w", carName, err)
	}
	defer shared.Close()

	shared.Lock()
	defer shared.Unlock()

	switch op {
	case OpOpen:
		shared.SetOpenButton(true)
	case OpClose:
		shared.SetCloseButton(true)
	case OpStop:
		shared.SetEmergencyStop(true)
	case OpServiceOn:
		shared.SetIndividualServiceMode(true)
		shared.SetEmergencyMode(false)
	case OpServiceOff:
		shared.SetIndividualServiceMode(false)
	case OpUp, OpDown:
		if err := applyMove(shared, op); err != nil {
			return err
		}
	default:
		return ErrInvalidOperation
	}

	shared.Broadcast()
	return nil
}

// applyMove implements the up/down precondition checks and the
// adjacent-floor computation, called with the block already locked.
func applyMove(shared *carstate.State, op string) error {
	if !shared.IndividualServiceMode() {
		return ErrServiceModeRequired
	}
	if shared.Status() == carstate.StatusBetween {
		return ErrCarMoving
	}
	if shared.Status() != carstate.StatusClosed {
		return ErrDoorsOpen
	}

	current, err := floorlabel.Parse(shared.CurrentFloor())
	if err != nil {
		return fmt.Errorf("panel: current floor %q: %w", shared.CurrentFloor(), err)
	}

	step := 1
	if op == OpDown {
		step = -1
	}
	next := current + step
	if next == 0 {
		next = step
	}

	label, err := floorlabel.Format(next)
	if err != nil {
		return fmt.Errorf("panel: next floor %d: %w", next, err)
	}
	shared.SetDestinationFloor(label)
	return nil
}
