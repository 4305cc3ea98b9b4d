package single

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"multi_downloader/internal/download/types"
)

// clientSet owns the HTTP client and any transport that needs an explicit close.
type clientSet struct {
	name           string
	client         *http.Client
	http3Transport *http3.Transport
}

func (c *clientSet) Close() {
	if c == nil {
		return
	}
	c.client.CloseIdleConnections()
	if c.http3Transport != nil {
		_ = c.http3Transport.Close()
	}
}

// newClientSet creates an http.Client tuned for many parallel single-stream downloads.
func newClientSet(runtime *types.RuntimeConfig, logger *slog.Logger) *clientSet {
	maxConns := runtime.GetMaxConnectionsPerHost()
	timeout := runtime.GetTimeout()

	// Keep proxy handling explicit to avoid surprising env interactions.
	proxyFunc := http.ProxyFromEnvironment
	if runtime.ProxyURL != "" {
		if parsedURL, err := url.Parse(runtime.ProxyURL); err == nil {
			proxyFunc = http.ProxyURL(parsedURL)
		} else {
			logger.Warn("Invalid proxy URL, using environment", "proxy", runtime.ProxyURL, "error", err)
		}
	}

	buildHTTPTransport := func(forceHTTP2 bool) *http.Transport {
		transport := &http.Transport{
			MaxIdleConns:        types.DefaultMaxIdleConns,
			MaxIdleConnsPerHost: maxConns,
			Proxy:               proxyFunc,

			// Timeouts to prevent hung connections. Body reads are bounded by
			// the per-attempt stall watchdog instead of Client.Timeout.
			IdleConnTimeout:       types.DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: types.DefaultExpectContinueTimeout,

			ForceAttemptHTTP2: forceHTTP2,

			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: types.KeepAliveDuration,
			}).DialContext,
		}

		if !forceHTTP2 {
			transport.TLSNextProto = make(map[string]func(authority string, c *tls.Conn) http.RoundTripper)
		}

		return transport
	}

	newHTTPClient := func(transport http.RoundTripper) *http.Client {
		return &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= types.MaxRedirects {
					return fmt.Errorf("stopped after %d redirects", types.MaxRedirects)
				}
				// Preserve caller-provided headers across redirects.
				if len(via) > 0 {
					for key, vals := range via[0].Header {
						req.Header[key] = vals
					}
				}
				return nil
			},
		}
	}

	protocol := runtime.GetProtocolPreference()
	if protocol == types.ProtocolHTTP3 && runtime.ProxyURL != "" {
		logger.Warn("HTTP/3 disabled because proxy is configured")
		protocol = types.ProtocolAuto
	}

	switch protocol {
	case types.ProtocolHTTP1:
		return &clientSet{name: types.ProtocolHTTP1, client: newHTTPClient(buildHTTPTransport(false))}
	case types.ProtocolHTTP3:
		t := &http3.Transport{
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"h3"},
			},
			QUICConfig: &quic.Config{
				HandshakeIdleTimeout: timeout,
				MaxIdleTimeout:       types.DefaultIdleConnTimeout,
				KeepAlivePeriod:      types.KeepAliveDuration,
			},
		}
		return &clientSet{name: types.ProtocolHTTP3, client: newHTTPClient(t), http3Transport: t}
	default:
		// auto and http2 both negotiate HTTP/2 over TLS and fall back to HTTP/1.1.
		return &clientSet{name: types.ProtocolHTTP2, client: newHTTPClient(buildHTTPTransport(true))}
	}
}
