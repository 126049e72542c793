// Package cardriver implements a car's door/motion state machine and
// its TCP control link to the controller.
package cardriver

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/elevatorctl/control-plane/internal/carstate"
	"github.com/elevatorctl/control-plane/internal/floorlabel"
)

// Car owns one car's shared memory block and its in-process state:
// the pending-destination latch (set when a FLOOR command arrives
// mid-move) and the dirty flag that wakes the transmit link on a
// status change.
type Car struct {
	Name    string
	Lowest  int
	Highest int
	Delay   time.Duration
	Log     zerolog.Logger

	shared *carstate.State

	pendingMu    sync.Mutex
	pendingFloor string
	hasPending   bool

	dirty chan struct{}
}

// New creates the car's shared memory block (this process is its
// owner) and returns a Car ready to run.
func New(name, lowestLabel, highestLabel string, delay time.Duration, log zerolog.Logger) (*Car, error) {
	lowest, err := floorlabel.Parse(lowestLabel)
	if err != nil {
		return nil, err
	}
	highest, err := floorlabel.Parse(highestLabel)
	if err != nil {
		return nil, err
	}

	shared, err := carstate.Create(name, lowestLabel)
	if err != nil {
		return nil, err
	}

	return &Car{
		Name:    name,
		Lowest:  lowest,
		Highest: highest,
		Delay:   delay,
		Log:     log,
		shared:  shared,
		dirty:   make(chan struct{}, 1),
	}, nil
}

// Close detaches and unlinks the car's shared memory block.
func (c *Car) Close() error {
	return c.shared.Close()
}

// signalDirty raises the transmit link's dirty flag, a no-op if
// already raised.
func (c *Car) signalDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *Car) clampFloor(index int) int {
	if index < c.Lowest {
		return c.Lowest
	}
	if index > c.Highest {
		return c.Highest
	}
	return index
}

func (c *Car) atDestination() bool {
	c.shared.Lock()
	defer c.shared.Unlock()
	return c.shared.CurrentFloor() == c.shared.DestinationFloor()
}

func (c *Car) fetchStatus(status carstate.Status) bool {
	c.shared.Lock()
	defer c.shared.Unlock()
	return c.shared.Status() == status
}

func (c *Car) isServiceMode() bool {
	c.shared.Lock()
	defer c.shared.Unlock()
	return c.shared.IndividualServiceMode()
}

func (c *Car) isEmergencyMode() bool {
	c.shared.Lock()
	defer c.shared.Unlock()
	return c.shared.EmergencyMode()
}

// modeFlags reads both mode flags under a single lock acquisition, the
// shape the transmit link needs.
func (c *Car) modeFlags() (service, emergency bool) {
	c.shared.Lock()
	defer c.shared.Unlock()
	return c.shared.IndividualServiceMode(), c.shared.EmergencyMode()
}

// takeButtons reads and clears both button flags under one lock
// acquisition, so a press is consumed exactly once.
func (c *Car) takeButtons() (open, closeBtn bool) {
	c.shared.Lock()
	defer c.shared.Unlock()
	open = c.shared.OpenButton()
	closeBtn = c.shared.CloseButton()
	c.shared.SetOpenButton(false)
	c.shared.SetCloseButton(false)
	return open, closeBtn
}

func (c *Car) bumpSafetySystem() int {
	c.shared.Lock()
	defer c.shared.Unlock()
	v := c.shared.SafetySystem() + 1
	c.shared.SetSafetySystem(v)
	c.shared.Broadcast()
	return v
}

func (c *Car) forceEmergencyMode() {
	c.shared.Lock()
	defer c.shared.Unlock()
	c.shared.SetEmergencyMode(true)
	c.shared.Broadcast()
}
