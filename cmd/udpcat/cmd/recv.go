package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuafuller/udpurl/session"
)

var (
	recvCount   int
	recvTimeout time.Duration
)

// datagram is one received payload as printed by recv.
type datagram struct {
	Seq     int    `json:"seq" yaml:"seq"`
	Size    int    `json:"size" yaml:"size"`
	Payload string `json:"payload" yaml:"payload"`
}

var recvCmd = &cobra.Command{
	Use:   "recv <udp-url>",
	Short: "Receive datagrams from a udp:// URL",
	Long: `Open the URL for reading, joining the multicast group when the host is a
group address, and print the received datagrams. Each receive waits at most
--timeout (or the configured timeout); zero waits forever.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if recvCount < 1 {
			return fmt.Errorf("invalid --count %d: must be at least 1", recvCount)
		}
		timeout := cfg.Timeout
		if cmd.Flags().Changed("timeout") {
			timeout = recvTimeout
		}

		s, err := session.Open(cmd.Context(), withConfigDefaults(args[0]), session.ModeRead, session.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}
		defer func() { _ = s.Close() }()

		buf := make([]byte, s.MaxPacketSize())
		received := make([]datagram, 0, recvCount)
		for len(received) < recvCount {
			n, err := receive(cmd.Context(), s, buf, timeout)
			if err != nil {
				return fmt.Errorf("failed to receive datagram %d: %w", len(received)+1, err)
			}
			received = append(received, datagram{Seq: len(received) + 1, Size: n, Payload: string(buf[:n])})
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(received))
		return nil
	},
}

func receive(ctx context.Context, s *session.Session, buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.ReadContext(ctx, buf)
}

func init() {
	recvCmd.Flags().IntVar(&recvCount, "count", 1, "number of datagrams to receive")
	recvCmd.Flags().DurationVar(&recvTimeout, "timeout", 0, "per-datagram receive timeout (0 waits forever)")
	rootCmd.AddCommand(recvCmd)
}
