//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// ConfigTestSuite contains tests for the connection configuration.
type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, &ConfigTestSuite{})
}

func (s *ConfigTestSuite) TestParseAddress() {
	tests := []struct {
		address      string
		port         int
		useSSL       bool
		wantProtocol string
		wantHost     string
		wantPort     string
		wantErr      bool
	}{
		{address: "", wantErr: true},
		{address: "tm1.example.com", wantProtocol: "http", wantHost: "tm1.example.com", wantPort: "80"},
		{address: "tm1.example.com", useSSL: true, wantProtocol: "https", wantHost: "tm1.example.com", wantPort: "443"},
		{address: "tm1.example.com:8010", wantProtocol: "http", wantHost: "tm1.example.com", wantPort: "8010"},
		{address: "tm1.example.com", port: 5898, wantProtocol: "http", wantHost: "tm1.example.com", wantPort: "5898"},
		{address: "tm1.example.com:8010", port: 5898, wantProtocol: "http", wantHost: "tm1.example.com", wantPort: "8010"},
		{address: "http://tm1.example.com", wantProtocol: "http", wantHost: "tm1.example.com", wantPort: "80"},
		{address: "https://tm1.example.com", wantProtocol: "https", wantHost: "tm1.example.com", wantPort: "443"},
		{address: "HTTPS://tm1.example.com:8010/", wantProtocol: "https", wantHost: "tm1.example.com", wantPort: "8010"},
		{address: "[::1]:8010", wantProtocol: "http", wantHost: "::1", wantPort: "8010"},
		{address: "ftp://tm1.example.com", wantErr: true},
		{address: "tm1.example.com:abc", wantErr: true},
		{address: "tm1.example.com:-1", wantErr: true},
		{address: "https://", wantErr: true},
	}

	for i, r := range tests {
		protocol, host, port, err := parseAddress(r.address, r.port, r.useSSL)
		if r.wantErr {
			s.Errorf(err, "Test-%d: parseAddress(%q) should have failed", i, r.address)
			continue
		}

		s.Require().NoErrorf(err, "Test-%d: parseAddress(%q) got error %v", i, r.address, err)
		s.Equalf(r.wantProtocol, protocol, "Test-%d: unexpected protocol", i)
		s.Equalf(r.wantHost, host, "Test-%d: unexpected host", i)
		s.Equalf(r.wantPort, port, "Test-%d: unexpected port", i)
	}
}

func (s *ConfigTestSuite) TestResolveBaseURL() {
	tests := []struct {
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			cfg:  Config{Address: "tm1.example.com:8010"},
			want: "http://tm1.example.com:8010/api/v1",
		},
		{
			cfg:  Config{Address: "https://tm1.example.com"},
			want: "https://tm1.example.com:443/api/v1",
		},
		{
			cfg:  Config{Address: "https://tm1.example.com", Database: "Planning"},
			want: "https://tm1.example.com:443/api/v1/Databases('Planning')",
		},
		{
			cfg:  Config{Address: "https://tm1.example.com", Instance: "tm1", Database: "Planning"},
			want: "https://tm1.example.com:443/tm1/api/v1/Databases('Planning')",
		},
		{
			cfg:  Config{Address: "https://tm1.example.com", Instance: "instance a"},
			want: "https://tm1.example.com:443/instance%20a/api/v1",
		},
		{
			cfg:  Config{BaseURL: "https://pa.example.com/tm1/api/v1/"},
			want: "https://pa.example.com/tm1/api/v1",
		},
		{
			cfg:  Config{BaseURL: "https://pa.example.com/tm1"},
			want: "https://pa.example.com/tm1/api/v1",
		},
		{
			cfg: Config{
				PAURL:    "https://us-east-1.planninganalytics.saas.ibm.com/",
				APIKey:   []byte("key"),
				Tenant:   "YC4B2M1AGY2Z",
				Database: "Planning",
			},
			want: "https://us-east-1.planninganalytics.saas.ibm.com/api/YC4B2M1AGY2Z/v0/tm1/Planning/api/v1",
		},
		{
			cfg: Config{
				PAURL:  "https://us-east-1.planninganalytics.saas.ibm.com",
				APIKey: []byte("key"),
				Tenant: "YC4B2M1AGY2Z",
			},
			wantErr: true,
		},
		{
			cfg:     Config{},
			wantErr: true,
		},
	}

	for i, r := range tests {
		err := r.cfg.resolveBaseURL()
		if r.wantErr {
			s.Errorf(err, "Test-%d: resolveBaseURL() should have failed", i)
			continue
		}

		s.Require().NoErrorf(err, "Test-%d: resolveBaseURL() got error %v", i, err)
		s.Equalf(r.want, r.cfg.baseURL, "Test-%d: unexpected base URL", i)
	}
}

func (s *ConfigTestSuite) TestResolveAuthMode() {
	tests := []struct {
		cfg  Config
		want auth.Mode
	}{
		{Config{User: "admin", Password: []byte("apple")}, auth.Basic},
		{Config{User: "admin", Namespace: "LDAP"}, auth.CAM},
		{Config{CAMPassport: "passport"}, auth.CAMSSO},
		{Config{IntegratedLogin: true}, auth.Negotiate},
		{Config{IntegratedLogin: true, Gateway: "https://cognos.example.com/gw"}, auth.CAMSSO},
		{Config{APIKey: []byte("k")}, auth.IBMCloudAPIKey},
		{Config{APIKey: []byte("k"), PAURL: "https://pa.saas.ibm.com"}, auth.PAProxy},
		{Config{APIKey: []byte("k"), CPDURL: "https://cpd.example.com"}, auth.ServiceToService},
		{Config{ApplicationClientID: "app", ApplicationClientSecret: []byte("s")}, auth.ServiceToService},
		{Config{AccessToken: "token", Namespace: "LDAP"}, auth.AccessToken},
		{Config{}, auth.Basic},
	}

	for i, r := range tests {
		s.Equalf(r.want, r.cfg.resolveAuthMode(), "Test-%d: unexpected mode", i)
	}
}

func (s *ConfigTestSuite) TestNewClientRejectsIncompleteCredentials() {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no credentials", Config{Address: "tm1.example.com"}},
		{"CAM without user", Config{Address: "tm1.example.com", Namespace: "LDAP"}},
		{"application secret missing", Config{Address: "tm1.example.com",
			ApplicationClientID: "app", AuthURL: "https://auth.example.com"}},
		{"application AuthURL missing", Config{Address: "tm1.example.com",
			ApplicationClientID: "app", ApplicationClientSecret: []byte("s")}},
		{"CPD without user", Config{Address: "tm1.example.com",
			APIKey: []byte("k"), CPDURL: "https://cpd.example.com"}},
		{"PA proxy without user", Config{Address: "tm1.example.com",
			APIKey: []byte("k"), PAURL: "https://pa.example.com"}},
		{"undecodable password", Config{Address: "tm1.example.com",
			User: "admin", Password: []byte("!!"), DecodeB64Password: true}},
	}

	// The addresses resolve nowhere; a dial attempt would surface as a
	// transport error, not the configuration error asserted here.
	for i, r := range tests {
		r.cfg.DisableLogging = true
		c, err := NewClient(r.cfg)
		s.Nilf(c, "Test-%d(%s): expected no client", i, r.name)
		s.Truef(tm1err.IsConfiguration(err), "Test-%d(%s): expected ConfigurationError, got %v", i, r.name, err)
	}
}

func (s *ConfigTestSuite) TestPassword() {
	cfg := Config{Password: []byte("apple")}
	got, err := cfg.password()
	s.Require().NoError(err)
	s.Equal([]byte("apple"), got)

	cfg = Config{Password: []byte("YXBwbGU="), DecodeB64Password: true}
	got, err = cfg.password()
	s.Require().NoError(err)
	s.Equal([]byte("apple"), got)

	cfg = Config{Password: []byte("not base64 !!"), DecodeB64Password: true}
	_, err = cfg.password()
	s.Truef(tm1err.IsConfiguration(err), "expected ConfigurationError, got %v", err)
}

func (s *ConfigTestSuite) TestSessionContextName() {
	cfg := Config{}
	s.Equal("TM1-Go-SDK", cfg.SessionContextName())

	cfg = Config{SessionContext: "Forecast Loader"}
	s.Equal("Forecast Loader", cfg.SessionContextName())
}

func (s *ConfigTestSuite) TestNewConfigFromFile() {
	content := `# connection
address=https://tm1.example.com:8010
database=Planning
user=admin
password=YXBwbGU=
decode_b64_password=true
namespace=LDAP
session.context=Forecast Loader
timeout=90s
port=8010
retain_session=true
async_requests_mode=false
`
	file := filepath.Join(s.T().TempDir(), "tm1.properties")
	s.Require().NoError(os.WriteFile(file, []byte(content), 0600))

	cfg, err := NewConfigFromFile(file)
	s.Require().NoErrorf(err, "NewConfigFromFile() got error %v", err)

	s.Equal("https://tm1.example.com:8010", cfg.Address)
	s.Equal("Planning", cfg.Database)
	s.Equal("admin", cfg.User)
	s.Equal([]byte("YXBwbGU="), cfg.Password)
	s.True(cfg.DecodeB64Password)
	s.Equal("LDAP", cfg.Namespace)
	s.Equal("Forecast Loader", cfg.SessionContext)
	s.Equal(90*time.Second, cfg.RequestTimeout)
	s.Equal(8010, cfg.Port)
	s.True(cfg.RetainSession)
	s.False(cfg.AsyncRequestsMode)
	s.Equal(auth.CAM, cfg.resolveAuthMode())
}

func (s *ConfigTestSuite) TestNewConfigFromFileRejectsBadValues() {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "address=tm1.example.com\nport=eight\n"},
		{"bad timeout", "address=tm1.example.com\ntimeout=fast\n"},
		{"bad bool", "address=tm1.example.com\nssl=definitely\n"},
	}

	dir := s.T().TempDir()
	for i, r := range tests {
		file := filepath.Join(dir, r.name+".properties")
		s.Require().NoError(os.WriteFile(file, []byte(r.content), 0600))

		_, err := NewConfigFromFile(file)
		s.Truef(tm1err.IsConfiguration(err), "Test-%d(%s): expected ConfigurationError, got %v", i, r.name, err)
	}

	_, err := NewConfigFromFile(filepath.Join(dir, "absent.properties"))
	s.Errorf(err, "a missing file should fail")
}
