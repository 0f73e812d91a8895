// Package network builds the HTTP client used for every remote request.
package network

import (
	"crypto/tls"
	"net/http"
	"time"
)

// secureCipherSuites restricts TLS 1.2 to AEAD suites with forward secrecy.
// TLS 1.3 suites are not configurable.
var secureCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

const tlsHandshakeTimeout = 30 * time.Second

// NewSecureTransport clones the default transport, keeping its proxy and
// dialer settings, and pins TLS to versions 1.2 and 1.3.
func NewSecureTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CipherSuites: secureCipherSuites,
	}
	transport.TLSHandshakeTimeout = tlsHandshakeTimeout
	transport.ForceAttemptHTTP2 = true
	return transport
}

// NewSecureHTTPClient returns a client on NewSecureTransport. It sets no
// overall timeout; requests are bounded by their context.
func NewSecureHTTPClient() *http.Client {
	return &http.Client{Transport: NewSecureTransport()}
}
