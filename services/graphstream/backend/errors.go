// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import "errors"

var (
	// ErrInvalidInput is returned when a caller-supplied argument is
	// structurally invalid (nil context, empty query, etc).
	ErrInvalidInput = errors.New("backend: invalid input")

	// ErrInvalidResponse marks a response the server returned with a
	// non-2xx status or a body that failed to decode.
	ErrInvalidResponse = errors.New("backend: invalid response")
)
