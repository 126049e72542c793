// Package safetymonitor implements the independent safety process that
// validates a single car's shared state block and can force emergency
// mode.
package safetymonitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/elevatorctl/control-plane/internal/carstate"
	"github.com/elevatorctl/control-plane/internal/floorlabel"
)

// pollInterval bounds how long a single Wait blocks before
// re-checking ctx, so shutdown is never stuck behind a silent block.
const pollInterval = 500 * time.Millisecond

// Monitor validates a car's shared block on every wakeup and forces
// emergency mode on any fault or invariant violation.
type Monitor struct {
	Shared *carstate.State
	Log    zerolog.Logger
}

// New attaches the named car's shared memory block for monitoring.
func New(carName string, log zerolog.Logger) (*Monitor, error) {
	shared, err := carstate.Open(carName)
	if err != nil {
		return nil, fmt.Errorf("safetymonitor: attach car %s: %w", carName, err)
	}
	return &Monitor{Shared: shared, Log: log}, nil
}

// Close detaches the shared block.
func (m *Monitor) Close() error { return m.Shared.Close() }

// Run blocks on the block's condition variable until ctx is cancelled,
// performing the five-step check on every wakeup.
func (m *Monitor) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m.Shared.Lock()
		m.Shared.Wait(pollInterval)
		if ctx.Err() != nil {
			m.Shared.Unlock()
			return
		}
		m.checkLocked()
	}
}

// checkLocked runs the five checks under the held lock, in order:
// liveness reset, obstruction recovery, stop button, overload, then
// full invariant validation. Each check that latches emergency mode
// prints its notice and ends the wakeup there; the rest fall through
// to a plain unlock.
func (m *Monitor) checkLocked() {
	s := m.Shared

	if s.SafetySystem() != 1 {
		s.SetSafetySystem(1)
		s.Broadcast()
	}

	if s.Status() == carstate.StatusClosing && s.DoorObstruction() {
		s.SetStatus(carstate.StatusOpening)
		s.Broadcast()
	}

	if s.EmergencyStop() && !s.EmergencyMode() {
		s.SetEmergencyMode(true)
		s.SetEmergencyStop(false)
		s.Broadcast()
		s.Unlock()
		fmt.Println("The emergency stop button has been pressed!")
		m.Log.Warn().Msg("emergency stop asserted")
		return
	}

	if s.Overload() && !s.EmergencyMode() {
		s.SetEmergencyMode(true)
		s.Broadcast()
		s.Unlock()
		fmt.Println("The overload sensor has been tripped!")
		m.Log.Warn().Msg("overload sensor tripped")
		return
	}

	if !s.EmergencyMode() && !m.invariantsHold() {
		s.SetEmergencyMode(true)
		s.Broadcast()
		s.Unlock()
		fmt.Println("Data consistency error!")
		m.Log.Warn().Msg("invariant violation detected")
		return
	}

	s.Unlock()
}

// invariantsHold checks the currently locked block: a valid status,
// parseable floor labels, flag words holding only 0 or 1, and
// door_obstruction only asserted during Opening/Closing.
func (m *Monitor) invariantsHold() bool {
	s := m.Shared

	if !carstate.ValidStatus(string(s.Status())) {
		return false
	}
	if _, err := floorlabel.Parse(s.CurrentFloor()); err != nil {
		return false
	}
	if _, err := floorlabel.Parse(s.DestinationFloor()); err != nil {
		return false
	}
	if !s.FlagsValid() {
		return false
	}
	if s.DoorObstruction() && s.Status() != carstate.StatusOpening && s.Status() != carstate.StatusClosing {
		return false
	}
	return true
}
