/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "errors"

var (
	ErrMissingID        = errors.New("missing object id")
	ErrTokenAcquisition = errors.New("taiga token acquisition failed")
	ErrNoRepositories   = errors.New("no repositories found")
	ErrNoProjects       = errors.New("no projects found")
	ErrNotifyFailed     = errors.New("failed to notify evaluation service")
	ErrUnknownEntity    = errors.New("unknown entity type")
)
