package network

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewSecureHTTPClientTLSBounds(t *testing.T) {
	client := NewSecureHTTPClient()
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected TLS 1.2 minimum, got %x", transport.TLSClientConfig.MinVersion)
	}
	if transport.TLSClientConfig.MaxVersion != tls.VersionTLS13 {
		t.Errorf("expected TLS 1.3 maximum, got %x", transport.TLSClientConfig.MaxVersion)
	}
	if transport.Proxy == nil {
		t.Error("expected proxy from environment")
	}
	if len(transport.TLSClientConfig.CipherSuites) == 0 {
		t.Error("expected an explicit TLS 1.2 cipher suite list")
	}
	for _, id := range transport.TLSClientConfig.CipherSuites {
		for _, weak := range tls.InsecureCipherSuites() {
			if id == weak.ID {
				t.Errorf("insecure cipher suite %s offered", weak.Name)
			}
		}
	}
	if transport.TLSHandshakeTimeout == 0 {
		t.Error("expected a TLS handshake timeout")
	}
	if client.Timeout != 0 {
		t.Errorf("client timeout should be left to the caller, got %v", client.Timeout)
	}
}

func TestNewSecureTransportIsolated(t *testing.T) {
	a, b := NewSecureTransport(), NewSecureTransport()
	if a == b || a.TLSClientConfig == b.TLSClientConfig {
		t.Error("each call should build its own transport")
	}
	if a == http.DefaultTransport {
		t.Error("default transport must not be modified")
	}
}

func TestNewSecureHTTPClientPlainHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	resp, err := NewSecureHTTPClient().Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("unexpected body %q", body)
	}
}
