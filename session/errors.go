package session

import (
	"github.com/joshuafuller/udpurl/internal/errors"
	"github.com/joshuafuller/udpurl/internal/options"
)

// Error kinds. Match them with errors.Is; the underlying OS error stays
// reachable through the same chain.
var (
	ErrResolution            = errors.ErrResolution
	ErrSocketCreation        = errors.ErrSocketCreation
	ErrNoUsableAddressFamily = errors.ErrNoUsableAddressFamily
	ErrBind                  = errors.ErrBind
	ErrSetOption             = errors.ErrSetOption
	ErrBufferConfig          = errors.ErrBufferConfig
	ErrJoin                  = errors.ErrJoin
	ErrInvalidSourceFilter   = errors.ErrInvalidSourceFilter
	ErrConnect               = errors.ErrConnect
	ErrIO                    = errors.ErrIO
	ErrUnsupported           = errors.ErrUnsupported
	ErrTimeoutOrInterrupt    = errors.ErrTimeoutOrInterrupt
	ErrInvalidOption         = errors.ErrInvalidOption
	ErrWouldBlock            = errors.ErrWouldBlock
)

type (
	// NetworkError reports a failed socket-layer operation.
	NetworkError = errors.NetworkError

	// ValidationError reports a malformed URL or option value.
	ValidationError = errors.ValidationError

	// Config is the transport configuration parsed from the URL query.
	Config = options.Config

	// SourceFilter is the multicast source list of a Config.
	SourceFilter = options.SourceFilter

	// FilterMode tells whether a SourceFilter includes or excludes its hosts.
	FilterMode = options.FilterMode
)

// Source filter modes.
const (
	FilterNone    = options.FilterNone
	FilterInclude = options.FilterInclude
	FilterExclude = options.FilterExclude
)

// ParseOptions parses a URL query the way Open does, for a session opened
// with mode. It lets callers validate or display options without opening a
// socket.
func ParseOptions(rawQuery string, mode Mode) (Config, error) {
	return options.Parse(rawQuery, mode.direction())
}
