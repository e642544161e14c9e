// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("account not found")
