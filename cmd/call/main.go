// Command call is the one-shot external client: it asks the
// controller to route a trip between two floors and prints the
// outcome.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/elevatorctl/control-plane/internal/floorlabel"
	"github.com/elevatorctl/control-plane/internal/frame"
	"github.com/elevatorctl/control-plane/internal/protocol"
)

const controllerAddr = "127.0.0.1:3000"

// recvBufferSize caps the reply payload a single call will accept.
const recvBufferSize = 64

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "call <source floor> <destination floor>",
		Short:        "Request elevator service between two floors",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(placeCall(args[0], args[1]))
			return nil
		},
	}
}

// placeCall runs one request/response exchange. Every failure mode
// prints a fixed user-facing line and the process always exits 0, so
// the return value here is purely the message to print.
func placeCall(srcLabel, dstLabel string) string {
	srcIdx, errSrc := floorlabel.Parse(srcLabel)
	dstIdx, errDst := floorlabel.Parse(dstLabel)
	if errSrc != nil || errDst != nil {
		return "Invalid floor(s) specified."
	}
	if srcIdx == dstIdx {
		return "You are already on that floor!"
	}

	conn, err := net.DialTimeout("tcp", controllerAddr, 5*time.Second)
	if err != nil {
		return "Unable to connect to elevator system."
	}
	defer conn.Close()

	codec := frame.New(conn)
	if err := codec.Send(protocol.Call(srcLabel, dstLabel)); err != nil {
		return "Unable to connect to elevator system."
	}

	reply, err := codec.Recv(recvBufferSize)
	if err != nil {
		return "Unable to connect to elevator system."
	}

	if name, ok := protocol.ParseCarAssignment(reply); ok {
		return fmt.Sprintf("Car %s is arriving.", name)
	}
	return "Sorry, no car is available to take this request."
}
