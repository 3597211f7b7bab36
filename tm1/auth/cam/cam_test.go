//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cam

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

type fakeNegotiateSource struct {
	token []byte
	err   error
}

func (s *fakeNegotiateSource) NegotiateToken(ctx context.Context, service string) ([]byte, error) {
	return s.token, s.err
}

// mockGateway emulates a Cognos gateway that issues a passport cookie for
// requests carrying a Negotiate authorization header.
type mockGateway struct {
	server   *httptest.Server
	passport string
	// when true the gateway authenticates but omits the passport cookie
	omitCookie bool
}

func newMockGateway(passport string) *mockGateway {
	g := &mockGateway{passport: passport}
	g.server = httptest.NewServer(http.HandlerFunc(g.handle))
	return g
}

func (g *mockGateway) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Negotiate ") {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("integrated login required"))
		return
	}

	if !g.omitCookie {
		http.SetCookie(w, &http.Cookie{Name: "cam_passport", Value: g.passport, Path: "/"})
	}
	w.WriteHeader(http.StatusOK)
}

// CAMTestSuite tests the CAM authentication providers.
type CAMTestSuite struct {
	suite.Suite

	gateway *mockGateway
	opts    auth.ProviderOptions
}

func (suite *CAMTestSuite) SetupSuite() {
	suite.gateway = newMockGateway("MTsxMDE6cGFzc3BvcnQ")
	suite.opts = auth.ProviderOptions{
		Timeout:    3 * time.Second,
		Logger:     logger.New(nil, logger.Off, false),
		HTTPClient: httputil.DefaultHTTPClient,
	}
}

func (suite *CAMTestSuite) TearDownSuite() {
	suite.gateway.server.Close()
}

func (suite *CAMTestSuite) TestNamespaceProvider() {
	tests := []struct {
		username  string
		password  string
		namespace string
		wantErr   bool
	}{
		{"", "apple", "LDAP", true},
		{"admin", "apple", "", true},
		{"admin", "apple", "LDAP", false},
		// empty passwords are accepted, anonymous CAM namespaces exist
		{"guest", "", "LDAP", false},
	}

	for i, r := range tests {
		p, err := NewNamespaceProvider(r.username, []byte(r.password), r.namespace)
		if r.wantErr {
			suite.Errorf(err, "Test-%d: NewNamespaceProvider(%q, %q) should have failed", i+1, r.username, r.namespace)
			continue
		}

		suite.Require().NoErrorf(err, "Test-%d: NewNamespaceProvider(%q, %q) got error %v", i+1, r.username, r.namespace, err)
		suite.Equalf(auth.CAM, p.Mode(), "Test-%d: unexpected mode", i+1)

		creds, err := p.HandshakeCredentials(context.Background())
		suite.Require().NoErrorf(err, "Test-%d: HandshakeCredentials got error %v", i+1, err)

		want := "CAMNamespace " + base64.StdEncoding.EncodeToString(
			[]byte(r.username+":"+r.password+":"+r.namespace))
		suite.Equalf(want, creds.Header.Get("Authorization"), "Test-%d: unexpected authorization header", i+1)
		suite.NoError(p.Close())
	}
}

func (suite *CAMTestSuite) TestPassportProvider() {
	_, err := NewPassportProvider("")
	suite.Error(err, "NewPassportProvider with empty passport should have failed")

	p, err := NewPassportProvider("MTsxMDE6cGFzc3BvcnQ")
	suite.Require().NoError(err)
	suite.Equal(auth.CAMSSO, p.Mode())

	creds, err := p.HandshakeCredentials(context.Background())
	suite.Require().NoError(err)
	suite.Equal("CAMPassport MTsxMDE6cGFzc3BvcnQ", creds.Header.Get("Authorization"))
	suite.Require().Len(creds.Cookies, 1)
	suite.Equal("cam_passport", creds.Cookies[0].Name)
	suite.Equal("MTsxMDE6cGFzc3BvcnQ", creds.Cookies[0].Value)
}

func (suite *CAMTestSuite) TestGatewayProvider() {
	_, err := NewGatewayProvider("", &fakeNegotiateSource{}, "HTTP/tm1.example.com")
	suite.Error(err, "NewGatewayProvider with empty URL should have failed")

	_, err = NewGatewayProvider(suite.gateway.server.URL, nil, "HTTP/tm1.example.com")
	suite.Error(err, "NewGatewayProvider with nil source should have failed")

	src := &fakeNegotiateSource{token: []byte{0x60, 0x82, 0x06, 0x06}}
	p, err := NewGatewayProvider(suite.gateway.server.URL, src, "HTTP/tm1.example.com", suite.opts)
	suite.Require().NoError(err)
	suite.Equal(auth.CAMSSO, p.Mode())

	creds, err := p.HandshakeCredentials(context.Background())
	suite.Require().NoError(err)
	suite.Equal("CAMPassport "+suite.gateway.passport, creds.Header.Get("Authorization"))
	suite.Require().Len(creds.Cookies, 1)
	suite.Equal(suite.gateway.passport, creds.Cookies[0].Value)
}

func (suite *CAMTestSuite) TestGatewayProviderRejected() {
	src := &fakeNegotiateSource{err: context.DeadlineExceeded}
	p, err := NewGatewayProvider(suite.gateway.server.URL, src, "HTTP/tm1.example.com", suite.opts)
	suite.Require().NoError(err)

	_, err = p.HandshakeCredentials(context.Background())
	suite.Error(err, "source failures should propagate")

	// a gateway that authenticates but issues no passport is an authentication failure
	suite.gateway.omitCookie = true
	defer func() { suite.gateway.omitCookie = false }()

	p3, err := NewGatewayProvider(suite.gateway.server.URL, &fakeNegotiateSource{token: []byte{1}}, "", suite.opts)
	suite.Require().NoError(err)
	_, err = p3.HandshakeCredentials(context.Background())
	suite.True(tm1err.IsAuthentication(err), "expected an authentication error, got %v", err)
}

func TestCAM(t *testing.T) {
	suite.Run(t, new(CAMTestSuite))
}
