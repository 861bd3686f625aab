package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshuafuller/udpurl/session"
)

var sendRepeat int

// sendReport summarizes a send run.
type sendReport struct {
	Destination string `json:"destination" yaml:"destination"`
	Local       string `json:"local" yaml:"local"`
	Datagrams   int    `json:"datagrams" yaml:"datagrams"`
	Bytes       int    `json:"bytes" yaml:"bytes"`
}

var sendCmd = &cobra.Command{
	Use:   "send <udp-url> [message...]",
	Short: "Send datagrams to a udp:// URL",
	Long: `Send the message arguments, joined by spaces, as one datagram. Without a
message every line read from stdin is sent as its own datagram.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendRepeat < 1 {
			return fmt.Errorf("invalid --repeat %d: must be at least 1", sendRepeat)
		}

		s, err := session.Open(cmd.Context(), withConfigDefaults(args[0]), session.ModeWrite, session.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}
		defer func() { _ = s.Close() }()

		report := sendReport{Destination: s.Destination().String(), Local: s.LocalAddr().String()}
		send := func(payload []byte) error {
			if len(payload) > s.MaxPacketSize() {
				logger.Warn("datagram exceeds pkt_size", zap.Int("size", len(payload)), zap.Int("pkt_size", s.MaxPacketSize()))
			}
			n, err := s.WriteContext(cmd.Context(), payload)
			if err != nil {
				return fmt.Errorf("failed to send datagram %d: %w", report.Datagrams+1, err)
			}
			report.Datagrams++
			report.Bytes += n
			return nil
		}

		if len(args) > 1 {
			payload := []byte(strings.Join(args[1:], " "))
			for i := 0; i < sendRepeat; i++ {
				if err := send(payload); err != nil {
					return err
				}
			}
		} else {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 65507)
			for scanner.Scan() {
				for i := 0; i < sendRepeat; i++ {
					if err := send(scanner.Bytes()); err != nil {
						return err
					}
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(report))
		return nil
	},
}

func init() {
	sendCmd.Flags().IntVar(&sendRepeat, "repeat", 1, "send each datagram this many times")
	rootCmd.AddCommand(sendCmd)
}
