//
// Copyright (c) 2021, 2026 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package sdkutil

import (
	"fmt"
	"runtime"
)

const (
	// Major, minor and patch versions for the SDK.
	major = 1
	minor = 3
	patch = 0

	// APIVersionPath is the path prefix of the OData REST API exposed by
	// TM1 servers.
	APIVersionPath = "/api/v1"

	// AsyncResourceFormat is the resource path used to poll or cancel an
	// asynchronous operation, relative to the API base.
	AsyncResourceFormat = "_async('%s')"

	// DefaultSessionContext identifies the client application in the
	// server's session monitoring views when the application does not set
	// its own context name.
	DefaultSessionContext = "TM1-Go-SDK"
)

var sdkVersion, userAgent string

// Sets sdkVersion and userAgent in package init function
func init() {
	sdkVersion = fmt.Sprintf("%d.%d.%d", major, minor, patch)
	// A sample User-Agent header: TM1-GoSDK/1.3.0 (go1.21; linux/amd64)
	userAgent = fmt.Sprintf("TM1-GoSDK/%s (%s; %s/%s)",
		sdkVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// SDKVersion returns the TM1 Go SDK version.
func SDKVersion() string {
	return sdkVersion
}

// UserAgent returns a descriptive string that can be set in the "User-Agent"
// header of HTTP requests.
func UserAgent() string {
	return userAgent
}
