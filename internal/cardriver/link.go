package cardriver

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elevatorctl/control-plane/internal/carstate"
	"github.com/elevatorctl/control-plane/internal/floorlabel"
	"github.com/elevatorctl/control-plane/internal/frame"
	"github.com/elevatorctl/control-plane/internal/protocol"
)

// recvBufferSize caps the payload of a single controller command.
const recvBufferSize = 64

// Link is the car's reconnecting TCP client to the controller: an
// outer reconnect loop around a receive/transmit goroutine pair.
type Link struct {
	Addr string
	Car  *Car
}

// Run reconnects to Addr whenever the link drops, refusing to dial
// while the car is in service or emergency mode.
func (l *Link) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !l.waitUntilConnectable(ctx) {
			return ctx.Err()
		}

		conn, err := net.DialTimeout("tcp", l.Addr, 5*time.Second)
		if err != nil {
			l.Car.Log.Warn().Err(err).Msg("dial controller failed")
			if !sleepCtx(ctx, l.Car.Delay) {
				return ctx.Err()
			}
			continue
		}

		if err := l.runConnection(ctx, conn); err != nil {
			l.Car.Log.Warn().Err(err).Msg("control link ended")
		}
		conn.Close()

		if !sleepCtx(ctx, l.Car.Delay) {
			return ctx.Err()
		}
	}
}

func (l *Link) waitUntilConnectable(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		service, emergency := l.Car.modeFlags()
		if !service && !emergency {
			return true
		}
		if !sleepCtx(ctx, l.Car.Delay) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (l *Link) runConnection(ctx context.Context, conn net.Conn) error {
	codec := frame.New(conn)

	if err := codec.Send(protocol.CarRegistration(l.Car.Name, floorlabel.MustFormat(l.Car.Lowest), floorlabel.MustFormat(l.Car.Highest))); err != nil {
		return fmt.Errorf("cardriver: send registration: %w", err)
	}
	if err := codec.Send(l.statusFrame()); err != nil {
		return fmt.Errorf("cardriver: send initial status: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.receiveLoop(gctx, codec) })
	g.Go(func() error { return l.transmitLoop(gctx, codec) })
	g.Go(func() error {
		// Closing the socket unblocks receiveLoop's Recv once either
		// loop has ended or ctx is cancelled.
		<-gctx.Done()
		conn.Close()
		return nil
	})
	return g.Wait()
}

func (l *Link) statusFrame() string {
	l.Car.shared.Lock()
	defer l.Car.shared.Unlock()
	return protocol.StatusUpdate(string(l.Car.shared.Status()), l.Car.shared.CurrentFloor(), l.Car.shared.DestinationFloor())
}

// receiveLoop consumes FLOOR commands from the controller, latching
// them as pending when the car is Between floors.
func (l *Link) receiveLoop(ctx context.Context, codec *frame.Codec) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := codec.Recv(recvBufferSize)
		if err != nil {
			return fmt.Errorf("cardriver: receive: %w", err)
		}

		label, ok := protocol.ParseFloor(msg)
		if !ok {
			continue
		}
		l.applyFloorCommand(label)
	}
}

func (l *Link) applyFloorCommand(label string) {
	car := l.Car
	car.shared.Lock()
	between := car.shared.Status() == carstate.StatusBetween
	if between {
		car.shared.Unlock()
		car.pendingMu.Lock()
		car.pendingFloor, car.hasPending = label, true
		car.pendingMu.Unlock()
		car.shared.Lock()
		car.shared.Broadcast()
		car.shared.Unlock()
		return
	}
	car.shared.SetDestinationFloor(label)
	car.shared.Broadcast()
	car.shared.Unlock()
	car.signalDirty()
}

// transmitLoop posts a STATUS frame whenever the car signals a change,
// and otherwise ticks the liveness counter once per delay interval.
func (l *Link) transmitLoop(ctx context.Context, codec *frame.Codec) error {
	car := l.Car
	timer := time.NewTimer(car.Delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-car.dirty:
			if err := codec.Send(l.statusFrame()); err != nil {
				return fmt.Errorf("cardriver: post status: %w", err)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(car.Delay)
		case <-timer.C:
			val := car.bumpSafetySystem()
			if val >= 3 {
				fmt.Println("Safety system disconnected! Entering emergency mode.")
				car.forceEmergencyMode()
				_ = codec.Send(protocol.Emergency)
				return fmt.Errorf("cardriver: safety system disconnected")
			}
			timer.Reset(car.Delay)
		}

		if service, emergency := car.modeFlags(); service || emergency {
			if service {
				_ = codec.Send(protocol.IndividualService)
			} else {
				_ = codec.Send(protocol.Emergency)
			}
			return fmt.Errorf("cardriver: mode changed, link closing")
		}
	}
}
