//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/auth/cam"
	"github.com/tm1labs/tm1-go-sdk/tm1/auth/cpd"
	"github.com/tm1labs/tm1-go-sdk/tm1/auth/ibmiam"
	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/internal/sdkutil"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

const (
	// The default timeout value for requests.
	defaultRequestTimeout = 60 * time.Second

	// The default timeout value for the session handshake and for requests
	// to authorization services.
	defaultHandshakeTimeout = 10 * time.Second

	// Default ports used when the address does not carry one.
	defaultHTTPSPort = "443"
	defaultHTTPPort  = "80"
)

// Config represents a group of configuration parameters for a Client.
//
// When creating a Client, the Config instance is copied so modifications on
// the instance have no effect on the existing Client which is immutable.
//
// The authentication mode is resolved from the supplied fields at client
// construction, before any network call. Explicit tokens and application
// credentials take precedence, cloud fields select the IAM and v12 modes,
// integrated login selects SSO, and a CAM namespace distinguishes CAM from
// basic authentication. An incomplete combination of fields for the resolved
// mode fails with a tm1err.ConfigurationError.
type Config struct {
	// Address specifies the TM1 database host the client connects to.
	// It may include protocol and port. The syntax is:
	//
	//	[http[s]://]host[:port]
	//
	// Address is required unless BaseURL is set.
	Address string

	// Port specifies the HTTP port of the TM1 database.
	// It is consulted when Address does not carry a port. If neither
	// specifies one, the port defaults to 443 for https and 80 for http.
	Port int

	// UseSSL selects https when Address does not carry a protocol.
	UseSSL bool

	// Instance specifies the v12 instance name the database belongs to.
	Instance string

	// Database specifies the v12 database name. When set, request paths are
	// prefixed with Databases('<name>').
	Database string

	// BaseURL overrides the computed service root. It may be a bare host
	// root or a full service root ending in /api/v1.
	BaseURL string

	// AuthURL specifies the authorization endpoint for the application
	// client credentials mode.
	AuthURL string

	// User specifies the name that is used to authenticate with the database.
	User string

	// Password specifies the password for User.
	Password []byte

	// DecodeB64Password indicates that Password holds a base64 encoded
	// value that must be decoded before use.
	DecodeB64Password bool

	// Namespace specifies the CAM namespace ID. Setting it selects CAM
	// authentication.
	Namespace string

	// CAMPassport specifies a pre-acquired CAM passport. Setting it selects
	// CAM single sign-on.
	CAMPassport string

	// Gateway specifies the URL of a Cognos gateway used for CAM single
	// sign-on with integrated login.
	Gateway string

	// IntegratedLogin selects SSO through the platform's security support
	// provider. NegotiateTokenSource must be supplied.
	IntegratedLogin bool

	// NegotiateTokenSource produces SPNEGO tokens for integrated login.
	NegotiateTokenSource auth.NegotiateTokenSource

	// NegotiateService names the service principal for integrated login,
	// typically "HTTP/<host>". If empty, it is derived from the address.
	NegotiateService string

	// AccessToken specifies a pre-acquired bearer token. It takes
	// precedence over all other credential fields.
	AccessToken string

	// ApplicationClientID and ApplicationClientSecret specify application
	// credentials for the v12 client credentials grant against AuthURL.
	ApplicationClientID     string
	ApplicationClientSecret []byte

	// APIKey specifies an IBM Cloud or CPD API key.
	APIKey []byte

	// IAMURL overrides the IBM Cloud IAM token endpoint.
	IAMURL string

	// PAURL specifies the Planning Analytics proxy root for SaaS
	// deployments. With an APIKey it selects the proxy JWT mode.
	PAURL string

	// CPDURL specifies the Cloud Pak for Data root. With an APIKey and
	// User it selects the CPD service login.
	CPDURL string

	// Tenant specifies the SaaS tenant ID used to build the service root
	// for PAURL deployments.
	Tenant string

	// Impersonate names a user the session acts as. The impersonation
	// header is sent on the handshake only.
	Impersonate string

	// SessionID attaches to an existing database session instead of
	// running a handshake.
	SessionID string

	// SessionContext names the application in the database's session
	// monitor. If empty, "TM1-Go-SDK" is used.
	SessionContext string

	// RetainSession keeps the database session alive when the client
	// disconnects, so a later client can attach to it through SessionID.
	RetainSession bool

	// CancelAtTimeout attempts to cancel the server-side operation when a
	// request times out.
	CancelAtTimeout bool

	// AsyncRequestsMode dispatches every request asynchronously and polls
	// for completion. Individual requests can override this.
	AsyncRequestsMode bool

	// ConnectionPoolSize bounds the connections kept to the database.
	// If not set, the underlying HTTP transport default applies.
	ConnectionPoolSize int

	// AuthProvider overrides the provider the resolver would construct.
	// The resolved mode is taken from the provider.
	AuthProvider auth.Provider

	// MetricsCollector receives client metrics. If not set, metrics are
	// discarded.
	MetricsCollector MetricsCollector

	// Configurations for requests.
	RequestConfig

	// Configurations for HTTP client.
	httputil.HTTPConfig

	// Configurations for logging.
	LoggingConfig

	protocol string
	host     string
	port     string
	baseURL  string
}

// RequestConfig represents a group of configuration parameters for requests.
type RequestConfig struct {
	// RequestTimeout specifies a timeout value for requests.
	// If set, it must be greater than or equal to 1 millisecond.
	RequestTimeout time.Duration

	// HandshakeTimeout specifies a timeout value for the session handshake
	// and for requests to authorization services.
	// If set, it must be greater than or equal to 1 millisecond.
	HandshakeTimeout time.Duration
}

// DefaultRequestTimeout returns the default timeout value for requests.
// If there is no configured timeout or it is configured as 0, a default
// value (defaultRequestTimeout) of 60 seconds is used.
func (r *RequestConfig) DefaultRequestTimeout() time.Duration {
	if r == nil || r.RequestTimeout == 0 {
		return defaultRequestTimeout
	}
	return r.RequestTimeout
}

// DefaultHandshakeTimeout returns the default timeout value for the session
// handshake. If there is no configured timeout or it is configured as 0, a
// default value (defaultHandshakeTimeout) of 10 seconds is used.
func (r *RequestConfig) DefaultHandshakeTimeout() time.Duration {
	if r == nil || r.HandshakeTimeout == 0 {
		return defaultHandshakeTimeout
	}
	return r.HandshakeTimeout
}

// LoggingConfig represents logging configurations.
type LoggingConfig struct {

	// Configurations for the logger.
	// If this is not set, use logger.DefaultLogger unless DisableLogging is set.
	*logger.Logger

	// DisableLogging represents whether logging is disabled.
	DisableLogging bool
}

// resolveLogger returns the logger the client should use.
func (lc *LoggingConfig) resolveLogger() *logger.Logger {
	switch {
	case lc.DisableLogging:
		return nil
	case lc.Logger != nil:
		return lc.Logger
	default:
		return logger.DefaultLogger
	}
}

// SessionContextName returns the configured session context, or the SDK
// default when unset.
func (c *Config) SessionContextName() string {
	if c.SessionContext == "" {
		return sdkutil.DefaultSessionContext
	}
	return c.SessionContext
}

// resolveBaseURL computes the service root all request paths attach to.
//
// Resolution order:
//
//  1. BaseURL, normalized: trailing slashes stripped, "/api/v1" appended
//     when missing.
//  2. PAURL with Tenant and Database (SaaS):
//     <PAURL>/api/<Tenant>/v0/tm1/<Database>/api/v1.
//  3. Address (with Port/UseSSL): <protocol>://<host>:<port>/api/v1.
//
// In the Address form a configured Instance prefixes the path and a
// configured Database appends Databases('<name>'), for v12 hosts that
// multiplex instances and databases.
func (c *Config) resolveBaseURL() error {
	if c.BaseURL != "" {
		u := strings.TrimRight(c.BaseURL, "/")
		if !strings.HasSuffix(u, sdkutil.APIVersionPath) {
			u += sdkutil.APIVersionPath
		}
		c.baseURL = u
		return nil
	}

	if c.PAURL != "" && len(c.APIKey) > 0 {
		if c.Tenant == "" || c.Database == "" {
			return tm1err.NewConfiguration("PAURL requires Tenant and Database")
		}
		c.baseURL = fmt.Sprintf("%s/api/%s/v0/tm1/%s%s",
			strings.TrimRight(c.PAURL, "/"), c.Tenant, c.Database, sdkutil.APIVersionPath)
		return nil
	}

	if err := c.parseAddress(); err != nil {
		return err
	}

	c.baseURL = c.protocol + "://" + c.host + ":" + c.port
	if c.Instance != "" {
		c.baseURL += "/" + url.PathEscape(c.Instance)
	}
	c.baseURL += sdkutil.APIVersionPath
	if c.Database != "" {
		c.baseURL += "/Databases('" + escapeName(c.Database) + "')"
	}
	return nil
}

// parseAddress tries to parse the specified Address, returns an error if
// Address does not conform to the syntax:
//
//	[http[s]://]host[:port]
//
// The following rules are applied to the Address:
//
// 1. If the protocol is omitted, UseSSL selects it.
//
// 2. If the port is omitted, the Port field is consulted; failing that the
// port defaults to 443 for https and 80 for http.
func (c *Config) parseAddress() (err error) {
	c.protocol, c.host, c.port, err = parseAddress(c.Address, c.Port, c.UseSSL)
	return
}

func parseAddress(address string, portNum int, useSSL bool) (protocol, host, port string, err error) {
	if address == "" {
		return "", "", "", tm1err.NewConfiguration("Address must be specified")
	}

	if idx := strings.Index(address, "://"); idx == -1 {
		host = address
	} else {
		protocol = strings.ToLower(address[:idx])
		if protocol != "https" && protocol != "http" {
			return "", "", "", tm1err.NewConfiguration("the specified protocol %q is not supported. "+
				"Must use \"https\" or \"http\"", protocol)
		}
		host = address[idx+3:]
	}

	// Strip the ending slashes.
	if strings.HasSuffix(host, "/") {
		host = strings.TrimRightFunc(host, func(r rune) bool {
			return r == '/'
		})
	}

	bracket := strings.IndexByte(host, ']')
	colon := strings.LastIndexByte(host, ':')
	if colon > bracket {
		host, port, err = net.SplitHostPort(host)
		if err != nil {
			return "", "", "", err
		}
		if port != "" {
			n, err := strconv.Atoi(port)
			if err != nil || n < 0 {
				return "", "", "", tm1err.NewConfiguration("invalid port number %s", port)
			}
		}
	}

	if host == "" {
		return "", "", "", tm1err.NewConfiguration("invalid address %q", address)
	}

	if protocol == "" {
		if useSSL {
			protocol = "https"
		} else {
			protocol = "http"
		}
	}

	if port == "" && portNum > 0 {
		port = strconv.Itoa(portNum)
	}

	if port == "" {
		if protocol == "https" {
			port = defaultHTTPSPort
		} else {
			port = defaultHTTPPort
		}
	}

	return
}

// resolveAuthMode determines the authentication mode from the configured
// fields without constructing a provider.
func (c *Config) resolveAuthMode() auth.Mode {
	switch {
	case c.AuthProvider != nil:
		return c.AuthProvider.Mode()
	case c.AccessToken != "":
		return auth.AccessToken
	case c.ApplicationClientID != "" || len(c.ApplicationClientSecret) > 0:
		return auth.ServiceToService
	case len(c.APIKey) > 0 && c.CPDURL != "":
		return auth.ServiceToService
	case len(c.APIKey) > 0 && c.PAURL != "":
		return auth.PAProxy
	case len(c.APIKey) > 0:
		return auth.IBMCloudAPIKey
	case c.IntegratedLogin && c.Gateway != "":
		return auth.CAMSSO
	case c.IntegratedLogin:
		return auth.Negotiate
	case c.CAMPassport != "":
		return auth.CAMSSO
	case c.Namespace != "":
		return auth.CAM
	default:
		return auth.Basic
	}
}

// password returns the configured password, decoding it when
// DecodeB64Password is set.
func (c *Config) password() ([]byte, error) {
	if !c.DecodeB64Password {
		return c.Password, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(string(c.Password))
	if err != nil {
		return nil, tm1err.NewConfigurationWithCause(err, "cannot decode base64 password")
	}
	return decoded, nil
}

// negotiateService returns the service principal for integrated login,
// deriving "HTTP/<host>" from the address when not configured.
func (c *Config) negotiateService() string {
	if c.NegotiateService != "" {
		return c.NegotiateService
	}
	return "HTTP/" + c.host
}

// newAuthProvider constructs the provider for the resolved authentication
// mode. The provider issues its own requests through httpClient so proxy and
// TLS settings apply to token exchanges too.
func (c *Config) newAuthProvider(httpClient *httputil.HTTPClient, lgr *logger.Logger) (auth.Provider, error) {
	if c.AuthProvider != nil {
		return c.AuthProvider, nil
	}

	opts := auth.ProviderOptions{
		Timeout:    c.DefaultHandshakeTimeout(),
		Logger:     lgr,
		HTTPClient: httpClient,
	}

	mode := c.resolveAuthMode()
	switch mode {
	case auth.AccessToken:
		return auth.NewStaticTokenProvider(c.AccessToken)

	case auth.ServiceToService:
		if len(c.APIKey) > 0 && c.CPDURL != "" {
			if c.User == "" {
				return nil, tm1err.NewConfiguration("CPD login requires User")
			}
			return cpd.NewAPIKeyLoginProvider(c.CPDURL, c.User, c.APIKey, opts)
		}
		if c.AuthURL == "" {
			return nil, tm1err.NewConfiguration("application credentials require AuthURL")
		}
		if c.ApplicationClientID == "" || len(c.ApplicationClientSecret) == 0 {
			return nil, tm1err.NewConfiguration("both ApplicationClientID and ApplicationClientSecret must be specified")
		}
		return cpd.NewClientCredentialsProvider(c.AuthURL, c.ApplicationClientID, c.ApplicationClientSecret, opts)

	case auth.PAProxy:
		if c.User == "" {
			return nil, tm1err.NewConfiguration("PA proxy login requires User")
		}
		iamURL := c.IAMURL
		if iamURL == "" {
			iamURL = ibmiam.DefaultIAMURL
		}
		upstream, err := ibmiam.NewProviderWithURL(iamURL, c.APIKey, opts)
		if err != nil {
			return nil, err
		}
		return cpd.NewProxyJWTProvider(c.PAURL, c.User, upstream, opts)

	case auth.IBMCloudAPIKey:
		if c.IAMURL != "" {
			return ibmiam.NewProviderWithURL(c.IAMURL, c.APIKey, opts)
		}
		return ibmiam.NewProvider(c.APIKey, opts)

	case auth.CAMSSO:
		if c.CAMPassport != "" {
			return cam.NewPassportProvider(c.CAMPassport)
		}
		return cam.NewGatewayProvider(c.Gateway, c.NegotiateTokenSource, c.negotiateService(), opts)

	case auth.Negotiate:
		return auth.NewNegotiateProvider(c.NegotiateTokenSource, c.negotiateService())

	case auth.CAM:
		password, err := c.password()
		if err != nil {
			return nil, err
		}
		return cam.NewNamespaceProvider(c.User, password, c.Namespace)

	default:
		if c.User == "" && c.SessionID != "" {
			// Attaching to an existing session needs no credentials.
			return nil, nil
		}
		password, err := c.password()
		if err != nil {
			return nil, err
		}
		return auth.NewBasicProvider(c.User, password)
	}
}

// NewConfigFromFile creates a Config from the specified properties file.
// The file uses flat key=value lines, for example:
//
//	address=https://tm1.example.com:8010
//	user=admin
//	password=YXBwbGU=
//	decode_b64_password=true
//	namespace=LDAP
//	session.context=Forecast Loader
//
// Recognized keys: address, port, ssl, base_url, auth_url, instance,
// database, user, password, decode_b64_password, namespace, cam_passport,
// gateway, access_token, application_client_id, application_client_secret,
// api_key, iam_url, pa_url, cpd_url, tenant, impersonate, session.context,
// timeout, retain_session, cancel_at_timeout, async_requests_mode.
func NewConfigFromFile(configFile string) (*Config, error) {
	prop, err := sdkutil.NewProperties(configFile)
	if err != nil {
		return nil, err
	}

	if err = prop.Load(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Address:                 prop.GetDefault("address", ""),
		BaseURL:                 prop.GetDefault("base_url", ""),
		AuthURL:                 prop.GetDefault("auth_url", ""),
		Instance:                prop.GetDefault("instance", ""),
		Database:                prop.GetDefault("database", ""),
		User:                    prop.GetDefault("user", ""),
		Password:                []byte(prop.GetDefault("password", "")),
		Namespace:               prop.GetDefault("namespace", ""),
		CAMPassport:             prop.GetDefault("cam_passport", ""),
		Gateway:                 prop.GetDefault("gateway", ""),
		AccessToken:             prop.GetDefault("access_token", ""),
		ApplicationClientID:     prop.GetDefault("application_client_id", ""),
		ApplicationClientSecret: []byte(prop.GetDefault("application_client_secret", "")),
		APIKey:                  []byte(prop.GetDefault("api_key", "")),
		IAMURL:                  prop.GetDefault("iam_url", ""),
		PAURL:                   prop.GetDefault("pa_url", ""),
		CPDURL:                  prop.GetDefault("cpd_url", ""),
		Tenant:                  prop.GetDefault("tenant", ""),
		Impersonate:             prop.GetDefault("impersonate", ""),
		SessionContext:          prop.GetDefault("session.context", ""),
	}

	if v := prop.GetDefault("port", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, tm1err.NewConfiguration("invalid port %q in %s", v, configFile)
		}
		cfg.Port = n
	}

	if v := prop.GetDefault("timeout", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, tm1err.NewConfiguration("invalid timeout %q in %s", v, configFile)
		}
		cfg.RequestTimeout = d
	}

	boolKeys := map[string]*bool{
		"ssl":                 &cfg.UseSSL,
		"decode_b64_password": &cfg.DecodeB64Password,
		"retain_session":      &cfg.RetainSession,
		"cancel_at_timeout":   &cfg.CancelAtTimeout,
		"async_requests_mode": &cfg.AsyncRequestsMode,
	}
	for key, field := range boolKeys {
		v := prop.GetDefault(key, "")
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, tm1err.NewConfiguration("invalid boolean %q for %s in %s", v, key, configFile)
		}
		*field = b
	}

	return cfg, nil
}
