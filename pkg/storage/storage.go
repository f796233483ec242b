// Package storage is the gateway to the content-addressed object store that
// holds staged deployment sources.
package storage

import (
	"context"
)

// FileDescriptor describes one stored object, either a file or a folder.
type FileDescriptor struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	BucketUID  string `json:"bucket_uid"`
	Prefix     string `json:"prefix"`
	ObjectName string `json:"object_name"`
	Hash       string `json:"filehash"`
	Size       int64  `json:"size"`
	Cid        string `json:"payloadCid"`
	URL        string `json:"ipfs_url"`
	PinStatus  string `json:"pin_status"`
	IsFolder   bool   `json:"is_folder"`
	CreatedAt  Time   `json:"created_at"`
	UpdatedAt  Time   `json:"updated_at"`
}

type UploadResult struct {
	Bucket  string
	Prefix  string
	Files   []FileDescriptor
	Folders int
}

// Storage is implemented by MCSClient and consumed by the manifest builder and
// the repository binder.
type Storage interface {
	// UploadFolder uploads every regular file below localDir to prefix, keeping
	// the relative layout. It is not transactional; files uploaded before a
	// failure stay in place.
	UploadFolder(ctx context.Context, bucket, prefix, localDir string) (*UploadResult, error)

	// UploadFile stores localPath at key. An existing object at key is a
	// conflict unless replace is set, in which case it is overwritten.
	UploadFile(ctx context.Context, bucket, key, localPath string, replace bool) (*FileDescriptor, error)

	// ListFiles lists the direct children of prefix. Folders are returned as
	// folder-flagged descriptors, not expanded.
	ListFiles(ctx context.Context, bucket, prefix string) ([]FileDescriptor, error)

	GetFile(ctx context.Context, bucket, key string) (*FileDescriptor, error)
}
