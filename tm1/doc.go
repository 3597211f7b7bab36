//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

/*
Package tm1 provides the public APIs for Go applications to use IBM TM1 and
Planning Analytics databases.

This package also provides configuration and common operational structs and
interfaces, such as the request and cell types used for database operations.

More detailed information can be viewed at: https://github.com/tm1labs/tm1-go-sdk/blob/master/README.md

*/
package tm1
