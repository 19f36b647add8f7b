package shell

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"defs"
	"ipc"
	"token"
)

/// NewPortCmd builds the `port` command group: a self-contained
/// listen-then-connect scenario, since a single CLI invocation can't
/// straddle two separate processes the way a real Listen/Connect pair
/// would.
func NewPortCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "port",
		Short: "Exercise a port rendezvous and a round of message exchange",
	}
	root.AddCommand(newPortDemoCmd())
	return root
}

func newPortDemoCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Register a port, connect to it, and exchange one message each way",
		RunE: func(cmd *cobra.Command, args []string) error {
			const ownerPid defs.Pid_t = 1
			const portID int64 = 42

			sec := token.NewSecurity(token.System(), token.RightListen|token.RightConnect)
			sec.SetUserACL([]token.AclEntry_t{{Type: token.EntryEveryone, Rights: token.RightListen | token.RightConnect}})

			p, err := ipc.Create(ownerPid, portID, sec)
			if err != 0 {
				return fmt.Errorf("create port: %v", err)
			}
			defer p.Disown()

			var g errgroup.Group
			g.Go(func() error {
				server, err := p.Listen(token.System(), -1)
				if err != 0 {
					return fmt.Errorf("listen: %v", err)
				}
				msg, err := server.Receive(5 * time.Second)
				if err != 0 {
					return fmt.Errorf("server receive: %v", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "server received: %q\n", string(msg.Data))
				reply, _ := ipc.NewMessage(ipc.UserMsgBase, []byte("ack: "+string(msg.Data)), nil, token.System())
				if serr := server.Send(reply, 5*time.Second, false); serr != 0 {
					return fmt.Errorf("server send: %v", serr)
				}
				return nil
			})

			client, err := ipc.Connect(ownerPid, portID, token.System(), 5*time.Second)
			if err != 0 {
				return fmt.Errorf("connect: %v", err)
			}
			out, _ := ipc.NewMessage(ipc.UserMsgBase, []byte(message), nil, token.System())
			if err := client.Send(out, 5*time.Second, false); err != 0 {
				return fmt.Errorf("client send: %v", err)
			}

			if err := g.Wait(); err != nil {
				return err
			}

			reply, rerr := client.Receive(5 * time.Second)
			if rerr != 0 {
				return fmt.Errorf("client receive: %v", rerr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client received: %q\n", string(reply.Data))
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "hello", "payload to send from the client")
	return cmd
}
