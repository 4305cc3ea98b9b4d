package types

import "time"

// Protocol preferences for the fetch transport.
const (
	ProtocolAuto  = "auto"
	ProtocolHTTP1 = "http1"
	ProtocolHTTP2 = "http2"
	ProtocolHTTP3 = "http3"
)

// Engine defaults.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultTimeout     = 10 * time.Second
	DefaultChunkSize   = 1024
	PerHostMax         = 32

	DefaultUserAgent = "multidl/1.0"

	DefaultMaxIdleConns          = 100
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultExpectContinueTimeout = time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second
	MaxRedirects                 = 10
)

// RuntimeConfig holds engine-level knobs. The zero value is usable: every
// getter falls back to the package defaults.
type RuntimeConfig struct {
	MaxAttempts           int
	RetryDelay            time.Duration
	Workers               int // 0 means one goroutine per task
	Timeout               time.Duration
	ChunkSize             int
	UserAgent             string
	ProxyURL              string
	ProtocolPreference    string
	MaxConnectionsPerHost int
}

func (r *RuntimeConfig) GetMaxAttempts() int {
	if r == nil || r.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}

// GetRetryDelay returns the fixed pause between attempts. A negative value
// disables the pause.
func (r *RuntimeConfig) GetRetryDelay() time.Duration {
	if r == nil || r.RetryDelay == 0 {
		return DefaultRetryDelay
	}
	if r.RetryDelay < 0 {
		return 0
	}
	return r.RetryDelay
}

func (r *RuntimeConfig) GetWorkers() int {
	if r == nil || r.Workers < 0 {
		return 0
	}
	return r.Workers
}

func (r *RuntimeConfig) GetTimeout() time.Duration {
	if r == nil || r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *RuntimeConfig) GetChunkSize() int {
	if r == nil || r.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return r.ChunkSize
}

func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return DefaultUserAgent
	}
	return r.UserAgent
}

func (r *RuntimeConfig) GetProtocolPreference() string {
	if r == nil {
		return ProtocolAuto
	}
	switch r.ProtocolPreference {
	case ProtocolHTTP1, ProtocolHTTP2, ProtocolHTTP3:
		return r.ProtocolPreference
	default:
		return ProtocolAuto
	}
}

func (r *RuntimeConfig) GetMaxConnectionsPerHost() int {
	if r == nil || r.MaxConnectionsPerHost <= 0 {
		return PerHostMax
	}
	return r.MaxConnectionsPerHost
}
