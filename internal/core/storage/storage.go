package storage

import "context"

// BlobStore is the contract against the external object storage used
// for generated NFS-e PDFs. The platform behind it is out of scope;
// only put-and-get-URL semantics are relied on.
type BlobStore interface {
	// Put stores the blob under the given key and returns a URL the
	// notification email can reference.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
