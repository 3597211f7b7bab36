//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

/*
This is the Go SDK for IBM TM1 and Planning Analytics.

More detailed information can be viewed at: https://github.com/tm1labs/tm1-go-sdk/blob/master/README.md

Installation

Refer to https://github.com/tm1labs/tm1-go-sdk/blob/master/README.md#installation for installation instructions.

Configuration

Refer to https://github.com/tm1labs/tm1-go-sdk/blob/master/README.md#configuring-the-sdk for configuration instructions.

Full Example

See https://github.com/tm1labs/tm1-go-sdk/blob/master/README.md#simple-example for an example program that uses the Go SDK to interact with a TM1 database.

*/
package tm1sdk
