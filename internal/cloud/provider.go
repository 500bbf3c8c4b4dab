// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the upload capability artifacts use to populate
// Artifact.UploadedTo.
package cloud

import "context"

// Provider uploads a local file to durable storage, returning the URL it
// can later be fetched from.
type Provider interface {
	Upload(ctx context.Context, localPath, key string) (url string, err error)
}
