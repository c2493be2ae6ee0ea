// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import "context"

// Publicity selects the access policy of an uploaded blob.
type Publicity string

const (
	// PublicBlob is served from the public CDN.
	PublicBlob Publicity = "public"
	// PrivateBlob needs a signed url to read.
	PrivateBlob Publicity = "private"
)

// Upload is the result of a blob store write.
type Upload struct {
	// URL is the serving address of the blob.
	URL string
	// RawURL is the unprocessed original when the store derives
	// renditions, otherwise equal to URL.
	RawURL string
	// Color is the dominant color extracted from image uploads, nil for
	// other content.
	Color *int32
}

// BlobStore is the external file storage collaborator. The core stores
// urls and digests only and never file bytes.
type BlobStore interface {
	// Upload writes data under path and returns its serving urls.
	Upload(ctx context.Context, contentType, path string, data []byte, publicity Publicity) (*Upload, error)
	// Delete removes the blob at path. Deleting an absent blob is not an
	// error.
	Delete(ctx context.Context, path string) error
}
