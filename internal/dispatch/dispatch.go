// Package dispatch implements the controller's per-car queue
// correction rule, scheduler, and call-routing logic.
package dispatch

import (
	"fmt"

	"github.com/elevatorctl/control-plane/internal/floorlabel"
	"github.com/elevatorctl/control-plane/internal/protocol"
	"github.com/elevatorctl/control-plane/internal/registry"
)

// inQueue reports whether fnum already appears in q.
func inQueue(q []int, fnum int) bool {
	for _, v := range q {
		if v == fnum {
			return true
		}
	}
	return false
}

// Enqueue applies the insertion rule to a car's queue: insert src if
// absent, then ensure dst ends up after src, removing an earlier dst
// occurrence and re-appending it if necessary, capped at
// registry.MaxQueue.
func Enqueue(car *registry.Car, src, dst int) {
	if src == dst {
		return
	}

	if !inQueue(car.Queue, src) && len(car.Queue) < registry.MaxQueue {
		car.Queue = append(car.Queue, src)
	}

	srcIndex, dstIndex := -1, -1
	for i, v := range car.Queue {
		if v == src && srcIndex < 0 {
			srcIndex = i
		}
		if v == dst && dstIndex < 0 {
			dstIndex = i
		}
	}

	if dstIndex >= 0 && dstIndex < srcIndex {
		car.Queue = append(car.Queue[:dstIndex], car.Queue[dstIndex+1:]...)
		dstIndex = -1
	}

	if dstIndex < 0 && len(car.Queue) < registry.MaxQueue {
		car.Queue = append(car.Queue, dst)
	}
}

// Dequeue drops the queue head, a no-op on an empty queue.
func Dequeue(car *registry.Car) {
	if len(car.Queue) == 0 {
		return
	}
	car.Queue = car.Queue[1:]
}

// SendHead formats a FLOOR frame for the queue head, or returns ok ==
// false if the queue is empty.
func SendHead(car *registry.Car) (frame string, ok bool) {
	if len(car.Queue) == 0 {
		return "", false
	}
	label, err := floorlabel.Format(car.Queue[0])
	if err != nil {
		return "", false
	}
	return protocol.Floor(label), true
}

// Schedule implements car_scheduler_handler: if the car reports
// "Opening" at the queue head floor, the trip is being serviced and
// the head is dequeued; if anything remains, the new head is sent.
// The returned frame is empty when there is nothing to send.
func Schedule(car *registry.Car) (frame string, ok bool) {
	if len(car.Queue) > 0 {
		headLabel, err := floorlabel.Format(car.Queue[0])
		if err == nil && car.Status == "Opening" && car.CurrentFloor == headLabel {
			Dequeue(car)
		}
	}
	if len(car.Queue) > 0 {
		return SendHead(car)
	}
	return "", false
}

// RouteResult is the outcome of routing a CALL request.
type RouteResult struct {
	CarName string
	Frame   string // FLOOR frame to send the car immediately, if any
}

// ErrInvalidFloors is returned when either floor fails to parse or
// both floors are equal.
var ErrInvalidFloors = fmt.Errorf("dispatch: invalid or equal floors")

// ErrNoCarAvailable is returned when no registered car's range covers
// both endpoints.
var ErrNoCarAvailable = fmt.Errorf("dispatch: no car available")

// Route implements the controller's CALL handling: validate both
// floors, select a car by first-fit range coverage, and enqueue the
// trip. A car whose queue was empty before this call has no STATUS
// traffic to drive the scheduler, so the head is handed back for an
// immediate send; a busy car picks the change up on its next STATUS.
func Route(reg *registry.Registry, srcLabel, dstLabel string) (RouteResult, error) {
	src, errSrc := floorlabel.Parse(srcLabel)
	dst, errDst := floorlabel.Parse(dstLabel)
	if errSrc != nil || errDst != nil || src == dst {
		return RouteResult{}, ErrInvalidFloors
	}

	car := reg.SelectFirstFit(src, dst)
	if car == nil {
		return RouteResult{}, ErrNoCarAvailable
	}

	result := RouteResult{CarName: car.Name}
	reg.Mutate(car.Name, func(c *registry.Car) {
		wasIdle := len(c.Queue) == 0
		Enqueue(c, src, dst)
		if !wasIdle {
			return
		}
		if frame, ok := SendHead(c); ok {
			result.Frame = frame
		}
	})
	return result, nil
}
