// uio-echo is a TCP echo server and client exercising the go-uio
// runtime: a multi-shot accept loop on the server side, a single
// connect/send/recv round-trip on the client side.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/ehrlich-b/go-uio/executor"
	"github.com/ehrlich-b/go-uio/net"
)

func main() {
	var (
		listen  = flag.String("listen", "", "run an echo server on this address, e.g. [::]:9091")
		connect = flag.String("connect", "", "connect to this address and send one message")
		msg     = flag.String("msg", "Hello from client!", "message to send in client mode")
		workers = flag.Int("workers", 0, "worker threads (0 = GOMAXPROCS)")
	)
	flag.Parse()

	switch {
	case *listen != "":
		if err := runServer(*listen, *workers); err != nil {
			fmt.Fprintf(os.Stderr, "uio-echo: %v\n", err)
			os.Exit(1)
		}
	case *connect != "":
		if err := executor.BlockOn(func(ctx context.Context) error {
			return runClient(ctx, *connect, *msg)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "uio-echo: %v\n", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runServer(addr string, workers int) error {
	pool, err := executor.NewPool(executor.Config{Workers: workers, NamePrefix: "echo-"})
	if err != nil {
		return err
	}
	executor.SetDefault(pool)

	pool.Spawn(func(ctx context.Context) {
		listener, err := net.Listen(addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uio-echo: listen: %v\n", err)
			return
		}
		fmt.Printf("Listening on: %s\n", listener.Addr())

		// One multi-shot accept registration feeds the whole loop; keep
		// it outside the loop body so it is armed exactly once.
		incoming := listener.Incoming(ctx)
		defer incoming.Close()
		for {
			conn, err := incoming.Next(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "uio-echo: accept: %v\n", err)
				return
			}
			executor.Spawn(func(ctx context.Context) {
				echo(ctx, conn)
			})
		}
	})

	pool.Wait()
	return nil
}

func echo(ctx context.Context, conn *net.TCPStream) {
	defer conn.Close()
	buf := net.GetBuffer(4096)
	defer net.PutBuffer(buf)

	for {
		n, err := conn.Recv(ctx, buf)
		if err != nil {
			return
		}
		if _, err := conn.Send(ctx, buf[:n]); err != nil {
			return
		}
	}
}

func runClient(ctx context.Context, addr, msg string) error {
	conn, err := net.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	local, _ := conn.LocalAddr()
	peer, _ := conn.PeerAddr()
	fmt.Printf("Connected to remote peer %s, local address: %s\n", peer, local)

	if _, err := conn.Send(ctx, []byte(msg)); err != nil {
		return err
	}

	buf := net.GetBuffer(4096)
	defer net.PutBuffer(buf)
	n, err := conn.Recv(ctx, buf)
	if err != nil {
		return err
	}
	fmt.Printf("Server response: %s\n", buf[:n])
	return nil
}
