package storage

import (
	"context"
	"io"
)

// BlobStore keeps uploaded application documents. Upload returns the locator
// saved as Document.StoragePath; Delete takes the same locator.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
	Delete(ctx context.Context, storedPath string) error
}

// ObjectName lays documents out per user and application.
func ObjectName(userID, applicationID, docID, fileName string) string {
	return "users/" + userID + "/applications/" + applicationID + "/" + docID + "-" + fileName
}
