//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package httputil provides utility functions used for HTTP clients.
package httputil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"
)

// HTTPClient represents an HTTP client.
// It is used to handle connections, send HTTP requests to and receive HTTP
// responses from the server. It is implemented based on http.Client,
// providing convenient configuration options to take control of client
// connections.
//
// The underlying http.Client's Transport maintains internal state, such as
// cached TCP connections, which can be reused. So an HTTPClient can handle
// multiple client connections, it should be reused instead of created as
// needed.
type HTTPClient struct {
	// client represents the underlying http.Client.
	client *http.Client
}

// NewHTTPClient creates an HTTPClient using the specified configurations.
//
// The returned client carries a cookie jar so that session cookies issued by
// the server are replayed on subsequent requests.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	hc := &HTTPClient{}
	// Set default values for Transport, the values will later be overwritten
	// by the provided configurations if specified.
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		DisableKeepAlives:     false,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.UseProxyFromEnv {
		tr.Proxy = http.ProxyFromEnvironment
	} else if cfg.ProxyURL != "" {
		pu, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		tr.Proxy = http.ProxyURL(pu)
		if cfg.ProxyUsername != "" && cfg.ProxyPassword != "" {
			auth := BasicAuth(cfg.ProxyUsername, []byte(cfg.ProxyPassword))
			tr.ProxyConnectHeader = http.Header{}
			tr.ProxyConnectHeader.Add("Proxy-Authorization", auth)
		}
	}

	if cfg.MaxIdleConns != 0 {
		tr.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost != 0 {
		tr.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.MaxConnsPerHost != 0 {
		tr.MaxConnsPerHost = cfg.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout != 0 {
		tr.IdleConnTimeout = cfg.IdleConnTimeout
	}

	dialTimeout := 30 * time.Second
	if cfg.DialTimeout != 0 {
		dialTimeout = cfg.DialTimeout
	}

	if cfg.UseHTTPS {
		rootCAs, _ := x509.SystemCertPool()
		if rootCAs == nil {
			rootCAs = x509.NewCertPool()
		}
		if !cfg.InsecureSkipVerify && cfg.CertPath != "" {
			certs, err := os.ReadFile(cfg.CertPath)
			if err != nil {
				return nil, err
			}
			if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
				return nil, fmt.Errorf("no valid PEM certs found in %s", cfg.CertPath)
			}
		}
		tr.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			RootCAs:            rootCAs,
			ServerName:         cfg.ServerName,
		}
	}

	tr.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	hc.client = &http.Client{
		Transport: tr,
		Jar:       jar,
	}
	return hc, nil
}

// Do sends an HTTP request and returns an HTTP response.
// It implements the RequestExecutor interface.
func (hc *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return hc.client.Do(req)
}

// Jar returns the cookie jar associated with the client, or nil if the
// client does not keep cookies.
func (hc *HTTPClient) Jar() http.CookieJar {
	if hc.client == nil {
		return nil
	}
	return hc.client.Jar
}

// CloseIdleConnections drops the cached keep-alive connections held by the
// underlying transport. It is used to discard connections the remote end has
// silently closed before an idempotent request is replayed.
func (hc *HTTPClient) CloseIdleConnections() {
	if hc.client != nil {
		hc.client.CloseIdleConnections()
	}
}

// DefaultHTTPClient is a default HTTPClient instance that is ready to use.
var DefaultHTTPClient = &HTTPClient{
	client: http.DefaultClient,
}

// HTTPConfig contains parameters used to configure HTTPClient.
type HTTPConfig struct {
	// UseHTTPS indicates if HTTPS is used.
	UseHTTPS bool

	// ProxyURL specifies an HTTP proxy server URL.
	// If specified, all transports go through the proxy server.
	ProxyURL string

	// ProxyUsername specifies the username used to authenticate with the
	// HTTP proxy server if required.
	ProxyUsername string

	// ProxyPassword specifies the password used to authenticate with the
	// HTTP proxy server if required.
	ProxyPassword string

	// UseProxyFromEnv indicates whether to use the proxy server that is set
	// by the environment variables HTTP_PROXY, HTTPS_PROXY and NO_PROXY
	// (or the lowercase versions thereof).
	// If UseProxyFromEnv is true, it takes precedence over the ProxyURL
	// parameter.
	UseProxyFromEnv bool

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts.
	// The default value is 100.
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle (keep-alive) connections
	// to keep per-host.
	// The default value is 10.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total number of connections per host.
	// Zero means no limit.
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection will remain idle before closing itself.
	// The default is 90 seconds.
	IdleConnTimeout time.Duration

	// DialTimeout is the maximum amount of time to wait for a connection to
	// be established.
	// The default is 30 seconds.
	DialTimeout time.Duration

	// InsecureSkipVerify controls whether a client verifies the server's
	// certificate chain and host name.
	// If InsecureSkipVerify is true, TLS accepts any certificate presented
	// by the server and any host name in that certificate.
	// In this mode, TLS is susceptible to man-in-the-middle attacks.
	InsecureSkipVerify bool

	// CertPath specifies the path to a pem-encoded certificate file.
	// Certificates in this file will be used in addition to system
	// certificates.
	// This field is typically used for local self-signed certificates.
	// If InsecureSkipVerify is true, this field is ignored.
	CertPath string

	// ServerName is used to verify the hostname for self-signed
	// certificates. This field is only used if CertPath is nonempty, and is
	// typically set to the "CN" subject value from the certificate specified
	// by CertPath.
	// If InsecureSkipVerify is true, this field is ignored.
	ServerName string
}
