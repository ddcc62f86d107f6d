package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

var (
	directClient   *http.Client
	proxyClient    *http.Client
	proxyClientURL string
	clientLock     sync.RWMutex
)

// Get returns a cached http.Client. With proxyURL == "" the client dials
// directly; otherwise the proxy is applied (http, https, socks, socks5).
// Clients are reused until the proxy url changes.
func Get(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		clientLock.RLock()
		if directClient != nil {
			clientLock.RUnlock()
			return directClient, nil
		}
		clientLock.RUnlock()

		clientLock.Lock()
		defer clientLock.Unlock()
		if directClient != nil {
			return directClient, nil
		}
		c, err := newClient("")
		if err != nil {
			return nil, err
		}
		directClient = c
		return directClient, nil
	}

	clientLock.RLock()
	if proxyClient != nil && proxyClientURL == proxyURL {
		clientLock.RUnlock()
		return proxyClient, nil
	}
	clientLock.RUnlock()

	clientLock.Lock()
	defer clientLock.Unlock()

	// Re-check after acquiring write lock.
	if proxyClient != nil && proxyClientURL == proxyURL {
		return proxyClient, nil
	}
	c, err := newClient(proxyURL)
	if err != nil {
		return nil, err
	}
	proxyClient = c
	proxyClientURL = proxyURL
	return proxyClient, nil
}

func clonedDefaultTransport() (*http.Transport, error) {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("default transport is not *http.Transport")
	}
	return transport.Clone(), nil
}

func newClient(proxyURLStr string) (*http.Client, error) {
	cloned, err := clonedDefaultTransport()
	if err != nil {
		return nil, err
	}
	// Completion responses stream for minutes; only the dial is bounded.
	cloned.ResponseHeaderTimeout = 60 * time.Second

	if proxyURLStr == "" {
		cloned.Proxy = nil
		return &http.Client{Transport: cloned}, nil
	}

	proxyURL, err := url.Parse(proxyURLStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	switch proxyURL.Scheme {
	case "http", "https":
		cloned.Proxy = http.ProxyURL(proxyURL)
	case "socks", "socks5":
		socksDialer, err := proxy.FromURL(proxyURL, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("invalid socks proxy: %w", err)
		}
		cloned.Proxy = nil
		cloned.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return socksDialer.Dial(network, addr)
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	return &http.Client{Transport: cloned}, nil
}
