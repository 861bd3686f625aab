package options

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/joshuafuller/udpurl/internal/errors"
	"github.com/joshuafuller/udpurl/internal/protocol"
)

func TestDefaults(t *testing.T) {
	tests := []struct {
		name       string
		dir        Direction
		wantBuffer int
	}{
		{"input uses receive buffer default", Input, protocol.DefaultReceiveBufferSize},
		{"output uses send buffer default", Output, protocol.DefaultSendBufferSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse("", tt.dir)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.BufferSize != tt.wantBuffer {
				t.Errorf("BufferSize = %d, want %d", cfg.BufferSize, tt.wantBuffer)
			}
			if cfg.TTL != protocol.DefaultTTL {
				t.Errorf("TTL = %d, want %d", cfg.TTL, protocol.DefaultTTL)
			}
			if cfg.MaxPacketSize != protocol.DefaultMaxPacketSize {
				t.Errorf("MaxPacketSize = %d, want %d", cfg.MaxPacketSize, protocol.DefaultMaxPacketSize)
			}
			if cfg.Reuse || cfg.ReuseSpecified || cfg.Connect {
				t.Errorf("flags should default to off, got %+v", cfg)
			}
		})
	}
}

func TestParse_RecognizedKeys(t *testing.T) {
	cfg, err := Parse("ttl=32&localport=6000&pkt_size=1316&buffer_size=131072&reuse=0&connect=1&localaddr=192.168.1.10", Output)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Config{
		TTL:            32,
		BufferSize:     131072,
		LocalPort:      6000,
		Reuse:          false,
		ReuseSpecified: true,
		Connect:        true,
		MaxPacketSize:  1316,
		LocalAddress:   "192.168.1.10",
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Parse() = %+v, want %+v", cfg, want)
	}
}

func TestParse_Reuse(t *testing.T) {
	tests := []struct {
		query     string
		wantReuse bool
	}{
		{"reuse", true},
		{"reuse=", true},
		{"reuse=1", true},
		{"reuse=0", false},
		{"reuse=2", true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			cfg, err := Parse(tt.query, Input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.query, err)
			}
			if cfg.Reuse != tt.wantReuse {
				t.Errorf("Reuse = %v, want %v", cfg.Reuse, tt.wantReuse)
			}
			if !cfg.ReuseSpecified {
				t.Errorf("ReuseSpecified = false, want true")
			}
		})
	}
}

func TestParse_SourceFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  SourceFilter
	}{
		{
			name:  "sources sets include mode",
			query: "sources=10.0.0.5,10.0.0.6",
			want:  SourceFilter{Mode: FilterInclude, Hosts: []string{"10.0.0.5", "10.0.0.6"}},
		},
		{
			name:  "block sets exclude mode",
			query: "block=10.0.0.9",
			want:  SourceFilter{Mode: FilterExclude, Hosts: []string{"10.0.0.9"}},
		},
		{
			name:  "sources takes precedence over block",
			query: "block=10.0.0.9&sources=10.0.0.5",
			want:  SourceFilter{Mode: FilterInclude, Hosts: []string{"10.0.0.5"}},
		},
		{
			name:  "empty sources keeps include mode with no hosts",
			query: "sources=",
			want:  SourceFilter{Mode: FilterInclude},
		},
		{
			name:  "order is preserved",
			query: "sources=10.0.0.3,10.0.0.1,10.0.0.2",
			want:  SourceFilter{Mode: FilterInclude, Hosts: []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.query, Input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.query, err)
			}
			if !reflect.DeepEqual(cfg.SourceFilter, tt.want) {
				t.Errorf("SourceFilter = %+v, want %+v", cfg.SourceFilter, tt.want)
			}
		})
	}
}

func TestParse_UnknownKeysIgnored(t *testing.T) {
	cfg, err := Parse("fifo_size=100&overrun_nonfatal=1&ttl=4", Output)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.TTL != 4 {
		t.Errorf("TTL = %d, want 4", cfg.TTL)
	}
}

func TestParse_FirstValueWins(t *testing.T) {
	cfg, err := Parse("ttl=8&ttl=64", Output)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.TTL != 8 {
		t.Errorf("TTL = %d, want 8", cfg.TTL)
	}
}

func TestParse_Strict(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantField string
	}{
		{"malformed ttl", "ttl=abc", "ttl"},
		{"ttl out of range", "ttl=256", "ttl"},
		{"negative localport", "localport=-1", "localport"},
		{"localport too large", "localport=70000", "localport"},
		{"zero pkt_size", "pkt_size=0", "pkt_size"},
		{"malformed buffer_size", "buffer_size=64k", "buffer_size"},
		{"malformed connect", "connect=yes", "connect"},
		{"malformed reuse", "reuse=on", "reuse"},
		{"empty host in sources", "sources=10.0.0.1,,10.0.0.2", "sources"},
		{"bad escape", "localaddr=%zz", "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query, Input)
			if err == nil {
				t.Fatalf("Parse(%q) error = nil, want validation error", tt.query)
			}
			if !stderrors.Is(err, errors.ErrInvalidOption) {
				t.Errorf("errors.Is(err, ErrInvalidOption) = false, err = %v", err)
			}
			var valErr *errors.ValidationError
			if !stderrors.As(err, &valErr) {
				t.Fatalf("error type = %T, want *errors.ValidationError", err)
			}
			if valErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", valErr.Field, tt.wantField)
			}
		})
	}
}

func TestParse_TooManySources(t *testing.T) {
	hosts := ""
	for i := 0; i <= protocol.MaxSources; i++ {
		if i > 0 {
			hosts += ","
		}
		hosts += "10.0.0.1"
	}

	if _, err := Parse("sources="+hosts, Input); !stderrors.Is(err, errors.ErrInvalidOption) {
		t.Errorf("Parse() error = %v, want ErrInvalidOption", err)
	}
}

func TestWithDefaults(t *testing.T) {
	defaults := map[string]string{
		"ttl":   "8",
		"reuse": "",
		"bogus": "1",
	}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty query gets all known defaults", "", "ttl=8&reuse"},
		{"explicit key is kept", "ttl=32", "ttl=32&reuse"},
		{"nothing to add", "ttl=1&reuse=0", "ttl=1&reuse=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithDefaults(tt.query, defaults); got != tt.want {
				t.Errorf("WithDefaults(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
