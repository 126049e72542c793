package cardriver

import (
	"context"
	"time"

	"github.com/elevatorctl/control-plane/internal/carstate"
	"github.com/elevatorctl/control-plane/internal/floorlabel"
)

// idlePoll, servicePoll and stepPoll are the three wait granularities
// the main loop uses while waiting for the next cond broadcast, named
// for when each applies: idle (no button/mode/floor change pending),
// mid service or emergency handling, and between normal-operation
// steps.
const (
	idlePoll    = 200 * time.Millisecond
	servicePoll = 100 * time.Millisecond
	stepPoll    = 50 * time.Millisecond
)

// statusHandler sets status, wakes every waiter, signals the transmit
// link, sleeps the car's delay, then reports whatever status holds
// once the delay has elapsed.
func (c *Car) statusHandler(status carstate.Status) carstate.Status {
	c.shared.Lock()
	c.shared.SetStatus(status)
	c.shared.Broadcast()
	c.shared.Unlock()
	c.signalDirty()

	time.Sleep(c.Delay)

	c.shared.Lock()
	out := c.shared.Status()
	c.shared.Unlock()
	c.signalDirty()
	return out
}

// openStatusHandler sets the door to status (normally "Open"), then
// holds it open until the close button is pressed or the open window
// — extended every time the open button is pressed — elapses, then
// runs the Closing leg.
func (c *Car) openStatusHandler(status carstate.Status) carstate.Status {
	c.shared.Lock()
	c.shared.SetStatus(status)
	c.shared.Broadcast()
	c.shared.Unlock()
	c.signalDirty()

	c.shared.Lock()
	deadline := time.Now().Add(c.Delay)
	for !c.shared.CloseButton() {
		if c.shared.OpenButton() {
			c.shared.SetOpenButton(false)
			deadline = time.Now().Add(c.Delay)
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		c.shared.Wait(remaining)
		if time.Now().After(deadline) && !c.shared.CloseButton() && !c.shared.OpenButton() {
			break
		}
	}
	if c.shared.CloseButton() {
		c.shared.SetCloseButton(false)
	}

	c.shared.SetStatus(carstate.StatusClosing)
	c.shared.Broadcast()
	c.shared.Unlock()
	c.signalDirty()

	time.Sleep(c.Delay)

	c.shared.Lock()
	reopened := c.shared.Status() == carstate.StatusOpening
	if c.shared.Status() == carstate.StatusClosing {
		c.shared.SetStatus(carstate.StatusClosed)
		c.shared.Broadcast()
	}
	out := c.shared.Status()
	c.shared.Unlock()
	c.signalDirty()

	if reopened {
		// The safety monitor flipped an obstructed close back to
		// Opening; finish that leg and run the open hold again.
		time.Sleep(c.Delay)
		return c.openStatusHandler(carstate.StatusOpen)
	}
	return out
}

// toClose forces status directly to Closed, used to finish a Closing
// leg.
func (c *Car) toClose() {
	c.shared.Lock()
	c.shared.SetStatus(carstate.StatusClosed)
	c.shared.Broadcast()
	c.shared.Unlock()
	c.signalDirty()
}

// toOpen runs the Opening leg and, if it completed rather than being
// interrupted, the Open hold.
func (c *Car) toOpen() {
	out := c.statusHandler(carstate.StatusOpening)
	if out != carstate.StatusOpening {
		return
	}
	c.openStatusHandler(carstate.StatusOpen)
}

// existsPending applies a FLOOR command that arrived while the car was
// Between floors, now that it has a stable destination to overwrite.
func (c *Car) existsPending() {
	c.pendingMu.Lock()
	floor, ok := c.pendingFloor, c.hasPending
	c.pendingFloor, c.hasPending = "", false
	c.pendingMu.Unlock()
	if !ok {
		return
	}

	c.shared.Lock()
	c.shared.SetDestinationFloor(floor)
	c.shared.Broadcast()
	c.shared.Unlock()
	c.signalDirty()
}

// moveOneFloor steps the car one floor toward its destination, going
// through a Between leg first.
func (c *Car) moveOneFloor() {
	c.statusHandler(carstate.StatusBetween)

	c.shared.Lock()
	if c.shared.Status() == carstate.StatusBetween {
		current, _ := floorlabel.Parse(c.shared.CurrentFloor())
		destination, _ := floorlabel.Parse(c.shared.DestinationFloor())
		next := c.clampFloor(floorlabel.StepToward(current, destination))
		c.shared.SetCurrentFloor(floorlabel.MustFormat(next))
		c.shared.SetStatus(carstate.StatusClosed)
		c.shared.Broadcast()
	}
	c.shared.Unlock()
	c.signalDirty()
}

// serviceBetween performs one technician-driven step: the destination
// set by the internal panel must be exactly one floor away, otherwise
// it is snapped back to the current floor and the move is refused.
func (c *Car) serviceBetween() {
	if !c.isServiceMode() || !c.fetchStatus(carstate.StatusClosed) {
		return
	}

	c.shared.Lock()
	current, _ := floorlabel.Parse(c.shared.CurrentFloor())
	destination, _ := floorlabel.Parse(c.shared.DestinationFloor())
	c.shared.Unlock()

	if destination == current || floorlabel.StepToward(current, destination) != destination {
		c.shared.Lock()
		c.shared.SetDestinationFloor(c.shared.CurrentFloor())
		c.shared.Broadcast()
		c.shared.Unlock()
		return
	}
	c.moveOneFloor()
}

// Run is the car's main operation loop: wait for a button, mode change
// or destination change, then act on it, branching first on service
// mode, then emergency mode, then normal dispatch-driven operation.
func (c *Car) Run(ctx context.Context) {
	for ctx.Err() == nil {
		c.waitForChange(ctx)
		if ctx.Err() != nil {
			return
		}

		switch {
		case c.isServiceMode():
			c.runServiceStep()
		case c.isEmergencyMode():
			c.runEmergencyStep()
		default:
			c.runNormalStep()
		}
	}
}

// waitForChange blocks until a button, a mode flag, or a floor
// mismatch appears, polling ctx between timed waits.
func (c *Car) waitForChange(ctx context.Context) {
	c.shared.Lock()
	defer c.shared.Unlock()
	for ctx.Err() == nil &&
		!c.shared.OpenButton() &&
		!c.shared.CloseButton() &&
		!c.shared.IndividualServiceMode() &&
		!c.shared.EmergencyMode() &&
		c.shared.CurrentFloor() == c.shared.DestinationFloor() {
		c.shared.Wait(idlePoll)
	}
}

func (c *Car) runServiceStep() {
	c.serviceBetween()

	open, closeBtn := c.takeButtons()
	if open && (c.fetchStatus(carstate.StatusClosed) || c.fetchStatus(carstate.StatusClosing)) {
		if out := c.statusHandler(carstate.StatusOpening); out == carstate.StatusOpening {
			c.shared.Lock()
			c.shared.SetStatus(carstate.StatusOpen)
			c.shared.Broadcast()
			c.shared.Unlock()
			c.signalDirty()
		}
	}
	if closeBtn && c.fetchStatus(carstate.StatusOpen) {
		c.statusHandler(carstate.StatusClosing)
		c.toClose()
	}

	c.shared.Lock()
	c.shared.Wait(servicePoll)
	c.shared.Unlock()
}

func (c *Car) runEmergencyStep() {
	open, closeBtn := c.takeButtons()

	if open && (c.fetchStatus(carstate.StatusClosed) || c.fetchStatus(carstate.StatusClosing)) {
		if out := c.statusHandler(carstate.StatusOpening); out == carstate.StatusOpening {
			c.shared.Lock()
			c.shared.SetStatus(carstate.StatusOpen)
			c.shared.Broadcast()
			c.shared.Unlock()
			c.signalDirty()
		}
	}
	if closeBtn {
		switch {
		case c.fetchStatus(carstate.StatusOpen):
			if out := c.statusHandler(carstate.StatusClosing); out == carstate.StatusClosing {
				c.toClose()
			}
		case c.fetchStatus(carstate.StatusClosing):
			c.toClose()
		}
	}

	c.shared.Lock()
	c.shared.Wait(servicePoll)
	c.shared.Unlock()
}

func (c *Car) runNormalStep() {
	if c.atDestination() {
		c.toOpen()
		c.existsPending()
	} else {
		switch {
		case c.fetchStatus(carstate.StatusClosed):
			c.moveOneFloor()
			if c.atDestination() {
				c.toOpen()
			}
			c.existsPending()
		case c.fetchStatus(carstate.StatusClosing):
			c.statusHandler(carstate.StatusClosing)
			c.toClose()
		case c.fetchStatus(carstate.StatusOpening):
			c.toOpen()
		}
	}

	open, closeBtn := c.takeButtons()
	if open && (c.fetchStatus(carstate.StatusClosed) || c.fetchStatus(carstate.StatusClosing)) {
		c.toOpen()
	}
	if closeBtn && c.fetchStatus(carstate.StatusOpen) {
		c.statusHandler(carstate.StatusClosing)
		c.toClose()
	}

	c.shared.Lock()
	c.shared.Wait(stepPoll)
	c.shared.Unlock()
}
