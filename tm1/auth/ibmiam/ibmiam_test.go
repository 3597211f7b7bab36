//
// Copyright (c) 2022, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package ibmiam

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

const testAPIKey = "zogau3HxHne8QLa_T9cSAq"

// mockIAMServer emulates the IBM Cloud IAM token endpoint.
type mockIAMServer struct {
	server *httptest.Server

	// lifetime of issued tokens
	tokenLifetime time.Duration

	// number of token exchanges served
	exchanges int32
}

func newMockIAMServer(tokenLifetime time.Duration) *mockIAMServer {
	m := &mockIAMServer{tokenLifetime: tokenLifetime}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *mockIAMServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if r.PostForm.Get("grant_type") != apiKeyGrant {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorCode":"BXNIM0109E","errorMessage":"Property missing or empty."}`)
		return
	}

	if r.PostForm.Get("apikey") != testAPIKey {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorCode":"BXNIM0415E","errorMessage":"Provided API key could not be found."}`)
		return
	}

	n := atomic.AddInt32(&m.exchanges, 1)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":"iam-token-%d","token_type":"Bearer","expires_in":%d,"expiration":%d}`,
		n, int64(m.tokenLifetime.Seconds()), time.Now().Add(m.tokenLifetime).Unix())
}

func (m *mockIAMServer) exchangeCount() int32 {
	return atomic.LoadInt32(&m.exchanges)
}

// IBMIAMTestSuite tests the IAM token provider.
type IBMIAMTestSuite struct {
	suite.Suite

	opts auth.ProviderOptions
}

func (suite *IBMIAMTestSuite) SetupSuite() {
	suite.opts = auth.ProviderOptions{
		Timeout:    3 * time.Second,
		HTTPClient: httputil.DefaultHTTPClient,
	}
}

func (suite *IBMIAMTestSuite) TestNewProvider() {
	tests := []struct {
		iamURL  string
		apiKey  string
		wantErr bool
	}{
		{"", testAPIKey, true},
		{DefaultIAMURL, "", true},
		{DefaultIAMURL, testAPIKey, false},
	}

	for i, r := range tests {
		p, err := NewProviderWithURL(r.iamURL, []byte(r.apiKey), suite.opts)
		if r.wantErr {
			suite.Errorf(err, "Test-%d: NewProviderWithURL(%q) should have failed", i+1, r.iamURL)
			continue
		}

		suite.Require().NoErrorf(err, "Test-%d: NewProviderWithURL(%q) got error %v", i+1, r.iamURL, err)
		suite.Equalf(auth.IBMCloudAPIKey, p.Mode(), "Test-%d: unexpected mode", i+1)
	}
}

func (suite *IBMIAMTestSuite) TestNewProviderFromFile() {
	file := filepath.Join(suite.T().TempDir(), "iam.properties")
	content := fmt.Sprintf("api_key=%s\niam_url=https://iam.test.cloud.ibm.com/identity/token\n", testAPIKey)
	suite.Require().NoError(os.WriteFile(file, []byte(content), 0600))

	p, err := NewProviderFromFile(file, suite.opts)
	suite.Require().NoError(err)
	suite.Equal("https://iam.test.cloud.ibm.com/identity/token", p.iamURL)

	_, err = NewProviderFromFile(filepath.Join(suite.T().TempDir(), "not-exists.properties"))
	suite.Error(err, "NewProviderFromFile should fail for a missing file")
}

func (suite *IBMIAMTestSuite) TestToken() {
	iam := newMockIAMServer(time.Hour)
	defer iam.server.Close()

	p, err := NewProviderWithURL(iam.server.URL, []byte(testAPIKey), suite.opts)
	suite.Require().NoError(err)
	defer p.Close()

	token, err := p.Token(context.Background())
	suite.Require().NoError(err)
	suite.Equal("iam-token-1", token.AccessToken)
	suite.Equal(int32(1), iam.exchangeCount())

	// the cached token serves subsequent calls
	token, err = p.Token(context.Background())
	suite.Require().NoError(err)
	suite.Equal("iam-token-1", token.AccessToken)
	suite.Equal(int32(1), iam.exchangeCount())

	creds, err := p.HandshakeCredentials(context.Background())
	suite.Require().NoError(err)
	suite.Equal("Bearer iam-token-1", creds.Header.Get("Authorization"))
}

func (suite *IBMIAMTestSuite) TestTokenRenew() {
	iam := newMockIAMServer(4 * time.Second)
	defer iam.server.Close()

	opts := suite.opts
	opts.ExpiryWindow = 2 * time.Second
	p, err := NewProviderWithURL(iam.server.URL, []byte(testAPIKey), opts)
	suite.Require().NoError(err)
	defer p.Close()

	_, err = p.Token(context.Background())
	suite.Require().NoError(err)
	suite.Equal(int32(1), iam.exchangeCount())

	// wait into the expiry window, the next call triggers a background renew
	time.Sleep(2200 * time.Millisecond)
	token, err := p.Token(context.Background())
	suite.Require().NoError(err)
	suite.Equal("iam-token-1", token.AccessToken, "caller should be served from cache while renewing")

	suite.Eventually(func() bool { return iam.exchangeCount() == 2 },
		3*time.Second, 50*time.Millisecond, "background renew did not happen")
}

func (suite *IBMIAMTestSuite) TestExpiredToken() {
	iam := newMockIAMServer(time.Second)
	defer iam.server.Close()

	p, err := NewProviderWithURL(iam.server.URL, []byte(testAPIKey), suite.opts)
	suite.Require().NoError(err)
	defer p.Close()

	_, err = p.Token(context.Background())
	suite.Require().NoError(err)

	time.Sleep(1200 * time.Millisecond)
	token, err := p.Token(context.Background())
	suite.Require().NoError(err)
	suite.Equal("iam-token-2", token.AccessToken, "expired token should be replaced synchronously")
}

func (suite *IBMIAMTestSuite) TestBadAPIKey() {
	iam := newMockIAMServer(time.Hour)
	defer iam.server.Close()

	p, err := NewProviderWithURL(iam.server.URL, []byte("wrong-key"), suite.opts)
	suite.Require().NoError(err)
	defer p.Close()

	_, err = p.Token(context.Background())
	suite.True(tm1err.IsAuthentication(err), "expected an authentication error, got %v", err)

	var authErr *tm1err.AuthenticationError
	suite.Require().ErrorAs(err, &authErr)
	suite.Equal(http.StatusBadRequest, authErr.StatusCode)
}

func (suite *IBMIAMTestSuite) TestConcurrentToken() {
	iam := newMockIAMServer(time.Hour)
	defer iam.server.Close()

	p, err := NewProviderWithURL(iam.server.URL, []byte(testAPIKey), suite.opts)
	suite.Require().NoError(err)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := p.Token(context.Background())
			suite.NoError(err)
			suite.Equal("iam-token-1", token.AccessToken)
		}()
	}
	wg.Wait()

	suite.Equal(int32(1), iam.exchangeCount(), "concurrent callers should share one exchange")
}

func (suite *IBMIAMTestSuite) TestClosedProvider() {
	iam := newMockIAMServer(time.Hour)
	defer iam.server.Close()

	p, err := NewProviderWithURL(iam.server.URL, []byte(testAPIKey), suite.opts)
	suite.Require().NoError(err)

	suite.NoError(p.Close())
	suite.NoError(p.Close(), "closing twice should not fail")

	_, err = p.Token(context.Background())
	suite.Error(err, "a closed provider must not issue tokens")
}

func TestIBMIAM(t *testing.T) {
	suite.Run(t, new(IBMIAMTestSuite))
}
