package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuafuller/udpurl/session"
)

var (
	inspectMode string
	inspectOpen bool
)

// urlReport is what inspect prints for one URL.
type urlReport struct {
	URL          string `json:"url" yaml:"url"`
	Mode         string `json:"mode" yaml:"mode"`
	Host         string `json:"host" yaml:"host"`
	Port         string `json:"port" yaml:"port"`
	TTL          int    `json:"ttl" yaml:"ttl"`
	BufferSize   int    `json:"buffer_size" yaml:"buffer_size"`
	PacketSize   int    `json:"pkt_size" yaml:"pkt_size"`
	LocalPort    int    `json:"localport" yaml:"localport"`
	LocalAddress string `json:"localaddr,omitempty" yaml:"localaddr,omitempty"`
	Reuse        bool   `json:"reuse" yaml:"reuse"`
	Connect      bool   `json:"connect" yaml:"connect"`
	Filter       string `json:"filter" yaml:"filter"`
	Sources      string `json:"sources,omitempty" yaml:"sources,omitempty"`

	// Filled in by --open.
	Bound     string `json:"bound,omitempty" yaml:"bound,omitempty"`
	Multicast bool   `json:"multicast,omitempty" yaml:"multicast,omitempty"`
	State     string `json:"state,omitempty" yaml:"state,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <udp-url>",
	Short: "Show the options a udp:// URL resolves to",
	Long: `Parse a udp:// URL with the configured defaults applied and print the
resulting transport options. With --open the session is also opened, which
binds the socket and joins multicast groups, and the bound address is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseMode(inspectMode)
		if err != nil {
			return err
		}
		rawURL := withConfigDefaults(args[0])

		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		opts, err := session.ParseOptions(u.RawQuery, mode)
		if err != nil {
			return fmt.Errorf("invalid options: %w", err)
		}

		report := urlReport{
			URL:          rawURL,
			Mode:         mode.String(),
			Host:         u.Hostname(),
			Port:         u.Port(),
			TTL:          opts.TTL,
			BufferSize:   opts.BufferSize,
			PacketSize:   opts.MaxPacketSize,
			LocalPort:    opts.LocalPort,
			LocalAddress: opts.LocalAddress,
			Reuse:        opts.Reuse,
			Connect:      opts.Connect,
			Filter:       opts.SourceFilter.Mode.String(),
			Sources:      strings.Join(opts.SourceFilter.Hosts, ","),
		}

		if inspectOpen {
			s, err := session.Open(cmd.Context(), rawURL, mode, session.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("failed to open session: %w", err)
			}
			defer func() { _ = s.Close() }()

			effective := s.Config()
			report.LocalPort = s.LocalPort()
			report.Reuse = effective.Reuse
			report.Bound = s.LocalAddr().String()
			report.Multicast = s.IsMulticast()
			report.State = s.State().String()
		}

		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(report))
		return nil
	},
}

// parseMode maps the --mode flag onto a session mode.
func parseMode(s string) (session.Mode, error) {
	switch strings.ToLower(s) {
	case "read", "r":
		return session.ModeRead, nil
	case "write", "w":
		return session.ModeWrite, nil
	case "read-write", "rw":
		return session.ModeReadWrite, nil
	default:
		return 0, fmt.Errorf("invalid mode %q: want read, write or read-write", s)
	}
}

func init() {
	inspectCmd.Flags().StringVar(&inspectMode, "mode", "read", "session mode: read, write, read-write")
	inspectCmd.Flags().BoolVar(&inspectOpen, "open", false, "open the session and report the bound socket")
	rootCmd.AddCommand(inspectCmd)
}
