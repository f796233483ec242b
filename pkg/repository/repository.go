// Package repository binds a local source directory to a remote storage
// location and turns it into a source URI for deployments.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/swanchain/go-swan-sdk/pkg/manifest"
	"github.com/swanchain/go-swan-sdk/pkg/storage"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
)

// Repository is a single-owner value; it does no locking.
type Repository struct {
	storage   storage.Storage
	localDir  string
	bucket    string
	prefix    string
	sourceURI string
}

func New(s storage.Storage) *Repository {
	return &Repository{
		storage: s,
	}
}

func (r *Repository) BindLocalDirectory(dir string) {
	r.localDir = dir
}

func (r *Repository) BindRemoteLocation(bucket, prefix string) {
	r.bucket = bucket
	r.prefix = prefix
}

func (r *Repository) LocalDirectory() string {
	return r.localDir
}

func (r *Repository) RemoteLocation() (string, string) {
	return r.bucket, r.prefix
}

// SourceURI is empty until GenerateSourceURI has succeeded.
func (r *Repository) SourceURI() string {
	return r.sourceURI
}

// UploadToStorage uploads the bound local directory and rebinds the remote
// location to bucket/prefix, even if the upload fails half way.
func (r *Repository) UploadToStorage(ctx context.Context, bucket, prefix string) (*storage.UploadResult, error) {
	if len(r.localDir) == 0 {
		return nil, swanerr.Errorf(swanerr.KindConfiguration, "no local directory bound to repository")
	}

	r.BindRemoteLocation(bucket, prefix)

	result, err := r.storage.UploadFolder(ctx, bucket, prefix, r.localDir)
	if err != nil {
		return result, fmt.Errorf("upload repository: %w", err)
	}

	return result, nil
}

// GenerateSourceURI expands the bound remote location into a manifest,
// publishes it at bucket/key and records its public URL as the source URI.
func (r *Repository) GenerateSourceURI(ctx context.Context, bucket, key, scratchPath string, replace bool) (*storage.FileDescriptor, error) {
	if len(r.bucket) == 0 || len(r.prefix) == 0 {
		return nil, swanerr.Errorf(swanerr.KindConfiguration, "no remote location bound to repository")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "Generate source URI")
	defer span.End()

	builder := manifest.New(r.storage)
	err := builder.AddFolder(ctx, r.bucket, r.prefix)
	if err != nil {
		return nil, fmt.Errorf("expand %s/%s: %w", r.bucket, r.prefix, err)
	}

	if len(builder.Files()) == 0 {
		log.Warnf("Manifest for %s/%s lists no files", r.bucket, r.prefix)
	}

	file, err := builder.Publish(ctx, bucket, key, scratchPath, replace)
	if err != nil {
		return nil, err
	}

	r.sourceURI = file.URL
	log.Infof("Source URI: %s", r.sourceURI)

	return file, nil
}

func nullable(s string) *string {
	if len(s) == 0 {
		return nil
	}
	return &s
}

func (r *Repository) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FolderDir  *string `json:"folder_dir"`
		BucketName *string `json:"bucket_name"`
		FolderPath *string `json:"folder_path"`
		SourceURI  *string `json:"source_uri"`
	}{
		FolderDir:  nullable(r.localDir),
		BucketName: nullable(r.bucket),
		FolderPath: nullable(r.prefix),
		SourceURI:  nullable(r.sourceURI),
	})
}
