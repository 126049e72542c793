//go:build linux

package safetymonitor

import (
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/elevatorctl/control-plane/internal/applog"
	"github.com/elevatorctl/control-plane/internal/carstate"
)

func testCarName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("safety%d", os.Getpid())
}

func newTestMonitor(t *testing.T) (*Monitor, *carstate.State) {
	t.Helper()
	name := testCarName(t)
	owner, err := carstate.Create(name, "1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { owner.Close() })

	mon, err := New(name, applog.New("test", name))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { mon.Close() })

	return mon, owner
}

func TestCheckResetsSafetySystemCounter(t *testing.T) {
	mon, owner := newTestMonitor(t)

	owner.Lock()
	owner.SetSafetySystem(5)
	owner.Unlock()

	mon.Shared.Lock()
	mon.checkLocked()

	owner.Lock()
	defer owner.Unlock()
	if got := owner.SafetySystem(); got != 1 {
		t.Errorf("SafetySystem = %d, want 1", got)
	}
}

func TestCheckFlipsObstructedClosingToOpening(t *testing.T) {
	mon, owner := newTestMonitor(t)

	owner.Lock()
	owner.SetStatus(carstate.StatusClosing)
	owner.SetDoorObstruction(true)
	owner.Unlock()

	mon.Shared.Lock()
	mon.checkLocked()

	owner.Lock()
	defer owner.Unlock()
	if owner.Status() != carstate.StatusOpening {
		t.Errorf("Status = %q, want Opening", owner.Status())
	}
}

func TestCheckEmergencyStopSetsModeAndClearsStop(t *testing.T) {
	mon, owner := newTestMonitor(t)

	owner.Lock()
	owner.SetEmergencyStop(true)
	owner.Unlock()

	mon.Shared.Lock()
	mon.checkLocked()

	owner.Lock()
	defer owner.Unlock()
	if !owner.EmergencyMode() {
		t.Error("expected EmergencyMode set after emergency_stop")
	}
	if owner.EmergencyStop() {
		t.Error("expected emergency_stop cleared after being handled")
	}
}

func TestCheckOverloadSetsEmergencyMode(t *testing.T) {
	mon, owner := newTestMonitor(t)

	owner.Lock()
	owner.SetOverload(true)
	owner.Unlock()

	mon.Shared.Lock()
	mon.checkLocked()

	owner.Lock()
	defer owner.Unlock()
	if !owner.EmergencyMode() {
		t.Error("expected EmergencyMode set after overload")
	}
}

func TestCheckInvariantViolationForcesEmergencyMode(t *testing.T) {
	mon, owner := newTestMonitor(t)

	owner.Lock()
	owner.SetDoorObstruction(true)
	owner.SetStatus(carstate.StatusClosed) // obstruction only valid during Opening/Closing
	owner.Unlock()

	mon.Shared.Lock()
	mon.checkLocked()

	owner.Lock()
	defer owner.Unlock()
	if !owner.EmergencyMode() {
		t.Error("expected EmergencyMode set on invariant violation")
	}
}

func TestCheckNeverClearsEmergencyMode(t *testing.T) {
	mon, owner := newTestMonitor(t)

	owner.Lock()
	owner.SetEmergencyMode(true)
	owner.Unlock()

	mon.Shared.Lock()
	mon.checkLocked()

	owner.Lock()
	defer owner.Unlock()
	if !owner.EmergencyMode() {
		t.Error("safety monitor must never clear emergency_mode")
	}
}

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}
