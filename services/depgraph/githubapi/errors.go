// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package githubapi

import "errors"

var (
	// ErrAuth indicates the GitHub API rejected the credentials.
	// Fatal to the whole analysis: nothing downstream can recover.
	ErrAuth = errors.New("github authentication failed")

	// ErrNotFound indicates the requested path or resource does not
	// exist. Traversal treats this as "file absent" and moves on.
	ErrNotFound = errors.New("github resource not found")

	// ErrRateLimited indicates a 403 rate-limit response that survived
	// the single fixed-delay retry.
	ErrRateLimited = errors.New("github rate limit exceeded")

	// ErrExhausted indicates transient failures outlasted the retry
	// budget.
	ErrExhausted = errors.New("github retries exhausted")
)
