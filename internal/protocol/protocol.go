// Package protocol builds and parses the ASCII command strings carried
// inside frame.Codec payloads on the control link.
package protocol

import (
	"fmt"
	"strings"
)

// CarRegistration is the frame a car sends the controller on connect.
func CarRegistration(name, lowest, highest string) string {
	return fmt.Sprintf("CAR %s %s %s", name, lowest, highest)
}

// ParseCarRegistration parses a "CAR <name> <low> <high>" frame.
func ParseCarRegistration(payload string) (name, lowest, highest string, ok bool) {
	fields := strings.Fields(strings.TrimPrefix(payload, "CAR "))
	if !strings.HasPrefix(payload, "CAR ") || len(fields) != 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// StatusUpdate is a car's state update sent to the controller.
func StatusUpdate(status, current, destination string) string {
	return fmt.Sprintf("STATUS %s %s %s", status, current, destination)
}

// ParseStatusUpdate parses a "STATUS <status> <cur> <dst>" frame.
func ParseStatusUpdate(payload string) (status, current, destination string, ok bool) {
	fields := strings.Fields(strings.TrimPrefix(payload, "STATUS "))
	if !strings.HasPrefix(payload, "STATUS ") || len(fields) != 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// Floor instructs a car to travel to label next.
func Floor(label string) string {
	return "FLOOR " + label
}

// ParseFloor parses a "FLOOR <label>" frame.
func ParseFloor(payload string) (label string, ok bool) {
	fields := strings.Fields(strings.TrimPrefix(payload, "FLOOR "))
	if !strings.HasPrefix(payload, "FLOOR ") || len(fields) != 1 {
		return "", false
	}
	return fields[0], true
}

// Call is the request a call client sends the controller.
func Call(src, dst string) string {
	return fmt.Sprintf("CALL %s %s", src, dst)
}

// ParseCall parses a "CALL <src> <dst>" frame.
func ParseCall(payload string) (src, dst string, ok bool) {
	fields := strings.Fields(strings.TrimPrefix(payload, "CALL "))
	if !strings.HasPrefix(payload, "CALL ") || len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// CarAssignment is the controller's reply naming the car taking a call.
func CarAssignment(name string) string {
	return "CAR " + name
}

// ParseCarAssignment parses a "CAR <name>" reply. It shares the "CAR "
// prefix with the three-field registration frame and tells the two
// apart only by field count.
func ParseCarAssignment(payload string) (name string, ok bool) {
	fields := strings.Fields(strings.TrimPrefix(payload, "CAR "))
	if !strings.HasPrefix(payload, "CAR ") || len(fields) != 1 {
		return "", false
	}
	return fields[0], true
}

const (
	Unavailable       = "UNAVAILABLE"
	IndividualService = "INDIVIDUAL SERVICE"
	Emergency         = "EMERGENCY"
)
