//go:build linux

package cardriver

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/elevatorctl/control-plane/internal/applog"
	"github.com/elevatorctl/control-plane/internal/carstate"
)

// testDelay is short enough to keep these tests fast but long enough
// that the goroutines under test reliably observe each other's writes.
const testDelay = 15 * time.Millisecond

func newTestCar(t *testing.T, lowestLabel, highestLabel string) *Car {
	t.Helper()
	name := fmt.Sprintf("drv%d", os.Getpid())
	car, err := New(name, lowestLabel, highestLabel, testDelay, applog.New("test", name))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { car.Close() })
	return car
}

func TestMoveOneFloorStepsTowardDestination(t *testing.T) {
	car := newTestCar(t, "1", "10")
	car.shared.Lock()
	car.shared.SetDestinationFloor("3")
	car.shared.Unlock()

	car.moveOneFloor()

	car.shared.Lock()
	defer car.shared.Unlock()
	if got := car.shared.CurrentFloor(); got != "2" {
		t.Errorf("CurrentFloor = %q, want 2", got)
	}
	if car.shared.Status() != carstate.StatusClosed {
		t.Errorf("Status = %q, want Closed after completed step", car.shared.Status())
	}
}

func (c *Car) waitForStatus(t *testing.T, status carstate.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.shared.Lock()
		got := c.shared.Status()
		c.shared.Unlock()
		if got == status {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("status never reached %q", status)
}

func TestOpenWindowExtendedByRepeatedOpenButton(t *testing.T) {
	car := newTestCar(t, "1", "10")

	done := make(chan time.Time, 1)
	go func() {
		car.toOpen()
		done <- time.Now()
	}()

	car.waitForStatus(t, carstate.StatusOpen)
	openedAt := time.Now()

	// Press open twice during the open window, each time before the
	// window would otherwise have elapsed, then stop pressing.
	time.Sleep(testDelay / 2)
	car.shared.Lock()
	car.shared.SetOpenButton(true)
	car.shared.Unlock()

	time.Sleep(testDelay / 2)
	car.shared.Lock()
	car.shared.SetOpenButton(true)
	car.shared.Unlock()

	select {
	case closedAt := <-done:
		// An un-extended hold plus the closing leg takes 2*delay from
		// Open; any extension pushes completion to at least 3*delay.
		if closedAt.Sub(openedAt) < 5*testDelay/2 {
			t.Errorf("doors closed too soon: %v after opening, want >= 2.5*delay", closedAt.Sub(openedAt))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("toOpen never returned")
	}

	car.shared.Lock()
	defer car.shared.Unlock()
	if car.shared.Status() != carstate.StatusClosed {
		t.Errorf("Status = %q, want Closed", car.shared.Status())
	}
}

func TestOpenWindowClosesAfterOneDelayOnceButtonReleased(t *testing.T) {
	car := newTestCar(t, "1", "10")

	start := time.Now()
	car.toOpen()
	elapsed := time.Since(start)

	// Opening + Open-hold + Closing, with no extension: roughly 3*delay.
	if elapsed < 2*testDelay {
		t.Errorf("closed too soon: %v, want >= 2*delay", elapsed)
	}

	car.shared.Lock()
	defer car.shared.Unlock()
	if car.shared.Status() != carstate.StatusClosed {
		t.Errorf("Status = %q, want Closed", car.shared.Status())
	}
}

func TestCloseButtonEndsOpenWindowImmediately(t *testing.T) {
	car := newTestCar(t, "1", "10")

	done := make(chan struct{})
	go func() {
		car.toOpen()
		close(done)
	}()

	time.Sleep(testDelay / 3)
	car.shared.Lock()
	car.shared.SetCloseButton(true)
	car.shared.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("toOpen did not return promptly after close button")
	}
}

func TestObstructedCloseResumesOpenSequence(t *testing.T) {
	car := newTestCar(t, "1", "10")

	done := make(chan struct{})
	go func() {
		car.toOpen()
		close(done)
	}()

	// Wait out the open hold, then catch the doors mid-Closing and
	// flip them back the way the safety monitor does on obstruction.
	car.waitForStatus(t, carstate.StatusClosing)
	car.shared.Lock()
	car.shared.SetStatus(carstate.StatusOpening)
	car.shared.Broadcast()
	car.shared.Unlock()

	// The car must run the open sequence again rather than latching
	// Closed, and still settle Closed once the re-run completes.
	car.waitForStatus(t, carstate.StatusOpen)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("toOpen never returned after obstruction re-open")
	}

	car.shared.Lock()
	defer car.shared.Unlock()
	if car.shared.Status() != carstate.StatusClosed {
		t.Errorf("Status = %q, want Closed", car.shared.Status())
	}
}

func TestServiceBetweenClampsDistantDestination(t *testing.T) {
	car := newTestCar(t, "1", "10")
	car.shared.Lock()
	car.shared.SetIndividualServiceMode(true)
	car.shared.SetCurrentFloor("5")
	car.shared.SetDestinationFloor("9")
	car.shared.Unlock()

	car.serviceBetween()

	car.shared.Lock()
	defer car.shared.Unlock()
	if got := car.shared.DestinationFloor(); got != "5" {
		t.Errorf("DestinationFloor = %q, want clamped back to 5", got)
	}
}

func TestServiceBetweenMovesAdjacentFloor(t *testing.T) {
	car := newTestCar(t, "1", "10")
	car.shared.Lock()
	car.shared.SetIndividualServiceMode(true)
	car.shared.SetCurrentFloor("5")
	car.shared.SetDestinationFloor("6")
	car.shared.Unlock()

	car.serviceBetween()

	car.shared.Lock()
	defer car.shared.Unlock()
	if got := car.shared.CurrentFloor(); got != "6" {
		t.Errorf("CurrentFloor = %q, want 6", got)
	}
}

func TestPendingDestinationLatchedDuringBetween(t *testing.T) {
	car := newTestCar(t, "1", "10")

	car.shared.Lock()
	car.shared.SetStatus(carstate.StatusBetween)
	car.shared.Unlock()

	(&Link{Car: car}).applyFloorCommand("9")

	car.shared.Lock()
	before := car.shared.DestinationFloor()
	car.shared.Unlock()

	car.existsPending()

	car.shared.Lock()
	defer car.shared.Unlock()
	if car.shared.DestinationFloor() != "9" {
		t.Errorf("DestinationFloor = %q, want 9 (pending applied)", car.shared.DestinationFloor())
	}
	if before == "9" {
		t.Fatal("FLOOR received during Between overwrote the destination instead of latching it")
	}
}
