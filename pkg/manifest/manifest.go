// Package manifest flattens a stored folder tree into a list of files and
// publishes that list as a single addressable document.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/ipfs/go-cid"
	log "github.com/sirupsen/logrus"

	"github.com/swanchain/go-swan-sdk/pkg/metrics"
	"github.com/swanchain/go-swan-sdk/pkg/storage"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
)

// Builder accumulates leaf file descriptors. It never holds folders.
// A Builder has a single owner and is not safe for concurrent use.
type Builder struct {
	storage storage.Storage
	files   []storage.FileDescriptor
}

func New(s storage.Storage) *Builder {
	return &Builder{
		storage: s,
		files:   make([]storage.FileDescriptor, 0),
	}
}

// AddFolder expands every folder below prefix and appends the leaves it finds.
// On error nothing is appended.
func (b *Builder) AddFolder(ctx context.Context, bucket, prefix string) error {
	prefix = strings.Trim(prefix, "/")

	queue, err := b.storage.ListFiles(ctx, bucket, prefix)
	if err != nil {
		return fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}

	seen := map[string]bool{prefix: true}
	leaves := make([]storage.FileDescriptor, 0, len(queue))

	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		if !entry.IsFolder {
			leaves = append(leaves, entry)
			continue
		}

		key := strings.Trim(entry.ObjectName, "/")
		if seen[key] {
			log.Debugf("Folder %s/%s already expanded", bucket, key)
			continue
		}
		seen[key] = true

		children, err := b.storage.ListFiles(ctx, bucket, key)
		if err != nil {
			return fmt.Errorf("list %s/%s: %w", bucket, key, err)
		}
		queue = append(queue, children...)
	}

	for _, leaf := range leaves {
		checkContentID(leaf)
	}
	b.files = append(b.files, leaves...)

	log.Debugf("Expanded %s/%s into %d files across %d folders", bucket, prefix, len(leaves), len(seen)-1)

	return nil
}

// AddFile appends a single stored file.
func (b *Builder) AddFile(ctx context.Context, bucket, key string) error {
	file, err := b.storage.GetFile(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	if file.IsFolder {
		return swanerr.Errorf(swanerr.KindValidation, "%s/%s is a folder; use AddFolder", bucket, key)
	}

	checkContentID(*file)
	b.files = append(b.files, *file)

	return nil
}

// Files returns a copy of the accumulated descriptors in insertion order.
func (b *Builder) Files() []storage.FileDescriptor {
	return append([]storage.FileDescriptor(nil), b.files...)
}

func (b *Builder) Document() *Document {
	doc := &Document{
		Data: Files{
			Files: make([]Entry, 0, len(b.files)),
		},
	}
	for _, file := range b.files {
		doc.Data.Files = append(doc.Data.Files, Entry{
			Cid:       file.Cid,
			CreatedAt: file.CreatedAt.UnixSeconds(),
			Name:      file.Name,
			UpdatedAt: file.UpdatedAt.UnixSeconds(),
			URL:       file.URL,
		})
	}
	return doc
}

// Publish writes the document to scratchPath and stores it at bucket/key.
// The returned descriptor's URL is the source URI of the manifest.
func (b *Builder) Publish(ctx context.Context, bucket, key, scratchPath string, replace bool) (*storage.FileDescriptor, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "Publish manifest")
	defer span.End()

	err := writeScratch(b.Document(), scratchPath)
	if err != nil {
		return nil, swanerr.ErrorWrap(swanerr.KindStorageIO, fmt.Errorf("write manifest to %s: %w", scratchPath, err))
	}

	file, err := b.storage.UploadFile(ctx, bucket, key, scratchPath, replace)
	if err != nil {
		return nil, fmt.Errorf("publish manifest to %s/%s: %w", bucket, key, err)
	}
	if len(file.URL) == 0 {
		return nil, swanerr.Errorf(swanerr.KindStorageIO, "published manifest %s/%s has no public URL", bucket, file.ObjectName)
	}

	metrics.ManifestsPublished.Inc()
	log.Infof("Published manifest with %d files to %s/%s", len(b.files), bucket, path.Clean(file.ObjectName))

	return file, nil
}

func writeScratch(doc *Document, scratchPath string) error {
	file, err := os.Create(scratchPath)
	if err != nil {
		return err
	}

	err = doc.Encode(file)
	if err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// checkContentID warns about descriptors whose content address does not parse.
// They are kept; the orchestrator resolves files by URL.
func checkContentID(file storage.FileDescriptor) {
	if len(file.Cid) == 0 {
		log.Warnf("File %s has no content id", file.ObjectName)
		return
	}
	_, err := cid.Decode(file.Cid)
	if err != nil {
		log.Warnf("File %s has malformed content id %q: %s", file.ObjectName, file.Cid, err)
	}
}
