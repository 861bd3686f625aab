// Package options turns the query part of a udp:// URL into a typed
// configuration record.
//
// Parsing is pure: no name resolution or socket work happens here. Unknown
// keys are ignored so newer URLs keep working with older code, but a known key
// with a malformed value is rejected with a *errors.ValidationError instead of
// being silently replaced by a default.
package options

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/joshuafuller/udpurl/internal/errors"
	"github.com/joshuafuller/udpurl/internal/protocol"
)

// Direction selects direction-dependent defaults.
type Direction int

const (
	// Input sessions are opened for reading (possibly also writing).
	Input Direction = iota
	// Output sessions are opened for writing only.
	Output
)

// String returns "input" or "output".
func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// FilterMode is the source-specific multicast mode.
type FilterMode int

const (
	// FilterNone means no source filter; readers make an any-source join.
	FilterNone FilterMode = iota
	// FilterInclude accepts only the listed sources (the sources key).
	FilterInclude
	// FilterExclude accepts all sources but the listed ones (the block key).
	FilterExclude
)

// String returns "none", "include" or "exclude".
func (m FilterMode) String() string {
	switch m {
	case FilterInclude:
		return "include"
	case FilterExclude:
		return "exclude"
	default:
		return "none"
	}
}

// SourceFilter lists the sources a multicast reader accepts (Include) or
// rejects (Exclude), in URL order.
type SourceFilter struct {
	Mode  FilterMode
	Hosts []string
}

// Config is the parsed transport configuration. It is not modified once a
// session has been opened with it.
type Config struct {
	TTL           int
	BufferSize    int
	LocalPort     int
	Reuse         bool
	Connect       bool
	MaxPacketSize int
	LocalAddress  string
	SourceFilter  SourceFilter

	// ReuseSpecified records whether the URL carried a reuse key at all.
	// Multicast sessions enable reuse unless it was explicitly turned off.
	ReuseSpecified bool
}

// Defaults returns the configuration used when the URL has no query.
func Defaults(dir Direction) Config {
	cfg := Config{
		TTL:           protocol.DefaultTTL,
		BufferSize:    protocol.DefaultReceiveBufferSize,
		MaxPacketSize: protocol.DefaultMaxPacketSize,
	}
	if dir == Output {
		cfg.BufferSize = protocol.DefaultSendBufferSize
	}
	return cfg
}

// Parse parses rawQuery (the text after '?', without the '?') into a Config
// seeded with the defaults for dir.
func Parse(rawQuery string, dir Direction) (Config, error) {
	cfg := Defaults(dir)
	if rawQuery == "" {
		return cfg, nil
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Config{}, &errors.ValidationError{Field: "query", Value: rawQuery, Message: err.Error()}
	}

	if v, ok := lookup(values, protocol.KeyReuse); ok {
		cfg.ReuseSpecified = true
		if cfg.Reuse, err = parseFlag(protocol.KeyReuse, v); err != nil {
			return Config{}, err
		}
	}
	if v, ok := lookup(values, protocol.KeyTTL); ok {
		if cfg.TTL, err = parseInt(protocol.KeyTTL, v, 0, protocol.MaxTTL); err != nil {
			return Config{}, err
		}
	}
	if v, ok := lookup(values, protocol.KeyLocalPort); ok {
		if cfg.LocalPort, err = parseInt(protocol.KeyLocalPort, v, 0, protocol.MaxPort); err != nil {
			return Config{}, err
		}
	}
	if v, ok := lookup(values, protocol.KeyPacketSize); ok {
		if cfg.MaxPacketSize, err = parseInt(protocol.KeyPacketSize, v, 1, 65507); err != nil {
			return Config{}, err
		}
	}
	if v, ok := lookup(values, protocol.KeyBufferSize); ok {
		if cfg.BufferSize, err = parseInt(protocol.KeyBufferSize, v, 1, 1<<30); err != nil {
			return Config{}, err
		}
	}
	if v, ok := lookup(values, protocol.KeyConnect); ok {
		if cfg.Connect, err = parseFlag(protocol.KeyConnect, v); err != nil {
			return Config{}, err
		}
	}
	if v, ok := lookup(values, protocol.KeyLocalAddr); ok {
		cfg.LocalAddress = v
	}

	// sources wins over block when both are present.
	if v, ok := lookup(values, protocol.KeySources); ok {
		if cfg.SourceFilter, err = parseSources(protocol.KeySources, v, FilterInclude); err != nil {
			return Config{}, err
		}
	} else if v, ok := lookup(values, protocol.KeyBlock); ok {
		if cfg.SourceFilter, err = parseSources(protocol.KeyBlock, v, FilterExclude); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// WithDefaults returns rawQuery with every key of defaults appended that
// rawQuery does not already set. Keys are appended in protocol.Keys order.
func WithDefaults(rawQuery string, defaults map[string]string) string {
	if len(defaults) == 0 {
		return rawQuery
	}
	present, _ := url.ParseQuery(rawQuery)

	var extra []string
	for _, key := range protocol.Keys {
		v, ok := defaults[key]
		if !ok {
			continue
		}
		if _, set := present[key]; set {
			continue
		}
		if v == "" {
			extra = append(extra, url.QueryEscape(key))
		} else {
			extra = append(extra, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	if len(extra) == 0 {
		return rawQuery
	}
	if rawQuery == "" {
		return strings.Join(extra, "&")
	}
	return rawQuery + "&" + strings.Join(extra, "&")
}

// lookup returns the first value of key, mirroring how repeated keys are
// resolved in URLs ("first one wins").
func lookup(values url.Values, key string) (string, bool) {
	vs, ok := values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func parseInt(key, v string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &errors.ValidationError{Field: key, Value: v, Message: "not an integer"}
	}
	if n < lo || n > hi {
		return 0, &errors.ValidationError{Field: key, Value: v, Message: fmt.Sprintf("out of range [%d, %d]", lo, hi)}
	}
	return n, nil
}

// parseFlag accepts a bare key as "enabled" and otherwise any integer, with
// non-zero meaning enabled.
func parseFlag(key, v string) (bool, error) {
	if v == "" {
		return true, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false, &errors.ValidationError{Field: key, Value: v, Message: "expected 0 or 1"}
	}
	return n != 0, nil
}

// parseSources splits a comma-separated host list. An empty value yields a
// filter with no hosts; whether that is acceptable is decided when the filter
// is applied.
func parseSources(key, v string, mode FilterMode) (SourceFilter, error) {
	filter := SourceFilter{Mode: mode}
	if v == "" {
		return filter, nil
	}
	for _, host := range strings.Split(v, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			return SourceFilter{}, &errors.ValidationError{Field: key, Value: v, Message: "empty host in list"}
		}
		filter.Hosts = append(filter.Hosts, host)
	}
	if len(filter.Hosts) > protocol.MaxSources {
		return SourceFilter{}, &errors.ValidationError{
			Field:   key,
			Value:   v,
			Message: fmt.Sprintf("at most %d sources are supported", protocol.MaxSources),
		}
	}
	return filter, nil
}
