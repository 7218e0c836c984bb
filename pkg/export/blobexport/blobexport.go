// Package blobexport is a durable evidence-bundle exporter over
// object storage (SPEC_FULL §4.10): S3 via aws-sdk-go-v2 and Google
// Cloud Storage via cloud.google.com/go/storage, both behind one
// small Store interface. Like pkg/export/sqlexport, this is a
// reference collaborator for the host's periodic export_evidence()
// call (spec §5) and is never imported by pkg/kernel.
package blobexport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kernelgate/governor/pkg/ledger"
)

// Store persists and retrieves opaque blobs by key. S3Store and
// GCSStore both implement it; a caller can swap backends without
// touching ExportBundle/LoadBundle.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// bundleKey names the object a bundle is stored under: content-addressed
// by its own root hash, since a bundle's root hash already uniquely
// identifies its contents, the same way the teacher's artifact stores
// content-address by a SHA-256 of the payload.
func bundleKey(kernelID, rootHash string) string {
	return fmt.Sprintf("%s/%s.json", kernelID, rootHash)
}

// ExportBundle serializes bundle as JSON and writes it to store under
// a content-addressed key, skipping the write entirely if that exact
// bundle has already been exported (idempotent, mirroring the
// teacher's "check Exists before Put" pattern).
func ExportBundle(ctx context.Context, store Store, bundle ledger.Bundle) error {
	key := bundleKey(bundle.KernelID, bundle.RootHash)

	exists, err := store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("blobexport: check existing export: %w", err)
	}
	if exists {
		return nil
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("blobexport: marshal bundle: %w", err)
	}
	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("blobexport: put bundle: %w", err)
	}
	return nil
}

// LoadBundle retrieves and deserializes a previously exported bundle.
func LoadBundle(ctx context.Context, store Store, kernelID, rootHash string) (ledger.Bundle, error) {
	key := bundleKey(kernelID, rootHash)
	data, err := store.Get(ctx, key)
	if err != nil {
		return ledger.Bundle{}, fmt.Errorf("blobexport: get bundle: %w", err)
	}

	var bundle ledger.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return ledger.Bundle{}, fmt.Errorf("blobexport: unmarshal bundle: %w", err)
	}
	return bundle, nil
}
