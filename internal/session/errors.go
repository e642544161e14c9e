// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package session

import "errors"

// ErrNotFound is returned when a requested session does not exist or is
// not in a state the operation can act on.
var ErrNotFound = errors.New("session not found")
