// uio-udp is a UDP scatter/gather echo server and client: the server
// receives each datagram into eight 2-byte segments via recvmsg and
// echoes it back in two halves via sendmsg.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/netip"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/ehrlich-b/go-uio/executor"
	"github.com/ehrlich-b/go-uio/net"
)

func main() {
	var (
		listen  = flag.String("listen", "", "serve on this address, e.g. [::]:9092")
		connect = flag.String("connect", "", "send one datagram to this address")
		bind    = flag.String("bind", "[::]:0", "local address in client mode")
		msg     = flag.String("msg", "Hello world!", "message to send in client mode")
	)
	flag.Parse()

	err := executor.BlockOn(func(ctx context.Context) error {
		switch {
		case *listen != "":
			return runServer(ctx, *listen)
		case *connect != "":
			return runClient(ctx, *bind, *connect, *msg)
		default:
			flag.Usage()
			os.Exit(2)
			return nil
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "uio-udp: %v\n", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, addr string) error {
	socket, err := net.ListenPacket(addr)
	if err != nil {
		return err
	}
	defer socket.Close()
	fmt.Printf("Listening for UDP messages on: %s\n", socket.LocalAddr())

	bufs := make([][]byte, 8)
	for i := range bufs {
		bufs[i] = make([]byte, 2)
	}

	for {
		n, from, err := socket.RecvMsg(ctx, bufs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uio-udp: recvmsg: %v\n", err)
			continue
		}
		raw := gather(bufs, n)
		fmt.Printf("Received %d bytes from %s message: %s\n", n, from, raw)

		half := n / 2
		sent, err := socket.SendMsg(ctx, [][]byte{raw[:half], raw[half:]}, from)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uio-udp: sendmsg: %v\n", err)
			continue
		}
		fmt.Printf("Sent %d bytes to %s.\n", sent, from)
	}
}

func runClient(ctx context.Context, bind, addr, msg string) error {
	remote, err := netip.ParseAddrPort(addr)
	if err != nil {
		return err
	}
	socket, err := net.ListenPacket(bind)
	if err != nil {
		return err
	}
	defer socket.Close()

	if err := socket.Connect(ctx, remote); err != nil {
		return err
	}
	if _, err := socket.Send(ctx, []byte(msg)); err != nil {
		return err
	}

	buf := net.GetBuffer(1024)
	defer net.PutBuffer(buf)
	n, err := socket.Recv(ctx, buf)
	if err != nil {
		return err
	}
	fmt.Printf("Received %d bytes from %s message: %s\n", n, socket.PeerAddr(), buf[:n])
	return nil
}

// gather concatenates the first n received bytes back out of the
// scatter buffers.
func gather(bufs [][]byte, n int) []byte {
	raw := make([]byte, 0, n)
	left := n
	for _, b := range bufs {
		if left == 0 {
			break
		}
		take := len(b)
		if take > left {
			take = left
		}
		raw = append(raw, b[:take]...)
		left -= take
	}
	return raw
}
