//go:build linux

package carstate

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func testCarName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("test%d", os.Getpid())
}

func TestCreateInitializesIdleState(t *testing.T) {
	name := testCarName(t)
	st, err := Create(name, "1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Close()

	st.Lock()
	defer st.Unlock()

	if st.Status() != StatusClosed {
		t.Errorf("Status = %q, want Closed", st.Status())
	}
	if st.CurrentFloor() != "1" {
		t.Errorf("CurrentFloor = %q, want 1", st.CurrentFloor())
	}
	if st.DestinationFloor() != "1" {
		t.Errorf("DestinationFloor = %q, want 1", st.DestinationFloor())
	}
	if st.OpenButton() || st.CloseButton() || st.EmergencyMode() {
		t.Errorf("expected all flags clear on create")
	}
}

func TestOpenSeesCreatorWrites(t *testing.T) {
	name := testCarName(t)
	owner, err := Create(name, "1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer owner.Close()

	attacher, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer attacher.Close()

	owner.Lock()
	owner.SetStatus(StatusOpen)
	owner.SetCurrentFloor("7")
	owner.Broadcast()
	owner.Unlock()

	attacher.Lock()
	defer attacher.Unlock()
	if attacher.Status() != StatusOpen {
		t.Errorf("attacher saw Status = %q, want Open", attacher.Status())
	}
	if attacher.CurrentFloor() != "7" {
		t.Errorf("attacher saw CurrentFloor = %q, want 7", attacher.CurrentFloor())
	}
}

func TestWaitWakesOnBroadcast(t *testing.T) {
	name := testCarName(t)
	owner, err := Create(name, "1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer owner.Close()

	woke := make(chan struct{})
	go func() {
		waiter, err := Open(name)
		if err != nil {
			t.Errorf("Open: %v", err)
			close(woke)
			return
		}
		defer waiter.Close()

		waiter.Lock()
		waiter.Wait(2 * time.Second)
		waiter.Unlock()
		close(woke)
	}()

	time.Sleep(50 * time.Millisecond)
	owner.Lock()
	owner.SetEmergencyStop(true)
	owner.Broadcast()
	owner.Unlock()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke after broadcast")
	}
}

func TestFlagsValidRejectsCorruptedWord(t *testing.T) {
	name := testCarName(t)
	st, err := Create(name, "1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Close()

	st.Lock()
	defer st.Unlock()

	if !st.FlagsValid() {
		t.Fatal("fresh block must have valid flags")
	}
	st.SetOpenButton(true)
	if !st.FlagsValid() {
		t.Error("flag word 1 must be valid")
	}

	st.block.doorObstruction = 2
	if st.FlagsValid() {
		t.Error("flag word 2 must be rejected")
	}
}

func TestValidStatus(t *testing.T) {
	valid := []string{"Closed", "Opening", "Open", "Closing", "Between"}
	for _, v := range valid {
		if !ValidStatus(v) {
			t.Errorf("ValidStatus(%q) = false, want true", v)
		}
	}
	if ValidStatus("Moving") {
		t.Errorf("ValidStatus(%q) = true, want false", "Moving")
	}
}
