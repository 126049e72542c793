// Package controlserver runs the controller's TCP listener: one
// goroutine per accepted connection, with the first frame
// discriminating between a car registration and a one-shot call.
package controlserver

import (
	"context"
	"net"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/elevatorctl/control-plane/internal/carstate"
	"github.com/elevatorctl/control-plane/internal/dispatch"
	"github.com/elevatorctl/control-plane/internal/floorlabel"
	"github.com/elevatorctl/control-plane/internal/frame"
	"github.com/elevatorctl/control-plane/internal/protocol"
	"github.com/elevatorctl/control-plane/internal/registry"
)

// recvBufferSize caps a single inbound command payload.
const recvBufferSize = 256

// Server is the controller's TCP listener and dispatch loop.
type Server struct {
	Addr string
	Reg  *registry.Registry
	Log  zerolog.Logger
}

// New builds a Server bound to addr, sharing reg as the car registry.
func New(addr string, reg *registry.Registry, log zerolog.Logger) *Server {
	return &Server{Addr: addr, Reg: reg, Log: log}
}

// lc sets SO_REUSEADDR before bind so a restarted controller can
// reclaim the control port immediately.
var lc = net.ListenConfig{
	Control: func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	},
}

// ListenAndServe binds the listener and runs the accept loop until
// Accept fails.
func (s *Server) ListenAndServe() error {
	ln, err := lc.Listen(context.Background(), "tcp", s.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	s.Log.Info().Str("addr", s.Addr).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// handle services one accepted connection: the first frame
// discriminates between car registration and a one-shot call.
func (s *Server) handle(conn net.Conn) {
	codec := frame.New(conn)

	first, err := codec.Recv(recvBufferSize)
	if err != nil {
		conn.Close()
		return
	}

	switch {
	case hasPrefix(first, "CAR "):
		s.handleCarRegistration(conn, codec, first)
	case hasPrefix(first, "CALL "):
		s.handleCall(conn, codec, first)
		conn.Close()
	default:
		conn.Close()
	}
}

func (s *Server) handleCarRegistration(conn net.Conn, codec *frame.Codec, first string) {
	name, lowestLabel, highestLabel, ok := protocol.ParseCarRegistration(first)
	if !ok {
		conn.Close()
		return
	}

	lowest, err1 := floorlabel.Parse(lowestLabel)
	highest, err2 := floorlabel.Parse(highestLabel)
	if err1 != nil || err2 != nil {
		conn.Close()
		return
	}
	if lowest > highest {
		lowest, highest = highest, lowest
	}

	shared, err := carstate.Open(name)
	if err != nil {
		s.Log.Warn().Err(err).Str("car", name).Msg("attach shared memory failed")
		shared = nil
	}

	car := &registry.Car{
		Name:         name,
		Lowest:       lowest,
		Highest:      highest,
		Conn:         codec,
		Shared:       shared,
		Status:       "Closed",
		CurrentFloor: lowestLabel,
		DestFloor:    lowestLabel,
	}

	if err := s.Reg.Register(car); err != nil {
		s.Log.Warn().Err(err).Str("car", name).Msg("registry full")
		if shared != nil {
			shared.Close()
		}
		conn.Close()
		return
	}

	s.Log.Info().Str("car", name).Int("lowest", lowest).Int("highest", highest).Msg("car registered")
	s.carLoop(conn, codec, name)
}

// carLoop is the status-handling loop: every STATUS frame updates the
// registry and invokes the scheduler; INDIVIDUAL SERVICE and EMERGENCY
// are ignored; anything else, or a read error, deregisters.
func (s *Server) carLoop(conn net.Conn, codec *frame.Codec, name string) {
	defer conn.Close()
	defer s.Reg.Remove(name)

	for {
		msg, err := codec.Recv(recvBufferSize)
		if err != nil {
			return
		}

		if status, cur, dst, ok := protocol.ParseStatusUpdate(msg); ok {
			s.Reg.Update(name, status, cur, dst)
			s.Reg.Mutate(name, func(car *registry.Car) {
				if f, ok := dispatch.Schedule(car); ok {
					_ = codec.Send(f)
				}
			})
			continue
		}

		if msg == protocol.IndividualService || msg == protocol.Emergency {
			continue
		}

		return
	}
}

func (s *Server) handleCall(conn net.Conn, codec *frame.Codec, first string) {
	src, dst, ok := protocol.ParseCall(first)
	if !ok {
		_ = codec.Send(protocol.Unavailable)
		return
	}

	result, err := dispatch.Route(s.Reg, src, dst)
	if err != nil {
		_ = codec.Send(protocol.Unavailable)
		return
	}

	_ = codec.Send(protocol.CarAssignment(result.CarName))

	if result.Frame != "" {
		s.Reg.Mutate(result.CarName, func(car *registry.Car) {
			if car.Conn != nil {
				_ = car.Conn.Send(result.Frame)
			}
		})
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
