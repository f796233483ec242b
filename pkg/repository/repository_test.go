package repository_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swanchain/go-swan-sdk/pkg/fakeswan"
	"github.com/swanchain/go-swan-sdk/pkg/manifest"
	"github.com/swanchain/go-swan-sdk/pkg/repository"
	"github.com/swanchain/go-swan-sdk/pkg/storage"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
)

func TestUploadWithoutLocalDirectory(t *testing.T) {
	repo := repository.New(storage.NewMockStorage(t))

	_, err := repo.UploadToStorage(context.Background(), "b1", "app")
	assert.Equal(t, swanerr.KindConfiguration, swanerr.ErrorKind(err))

	bucket, prefix := repo.RemoteLocation()
	assert.Empty(t, bucket)
	assert.Empty(t, prefix)
}

func TestGenerateSourceURIWithoutRemoteLocation(t *testing.T) {
	// any storage call fails the test through the mock
	s := storage.NewMockStorage(t)

	for _, tc := range []struct {
		name string
		bind func(r *repository.Repository)
	}{
		{name: "nothing bound", bind: func(r *repository.Repository) {}},
		{name: "only local directory", bind: func(r *repository.Repository) { r.BindLocalDirectory(t.TempDir()) }},
		{name: "bucket without prefix", bind: func(r *repository.Repository) { r.BindRemoteLocation("b1", "") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			repo := repository.New(s)
			tc.bind(repo)

			file, err := repo.GenerateSourceURI(context.Background(), "b1", "source.json", filepath.Join(t.TempDir(), "source.json"), true)
			assert.Nil(t, file)
			assert.Equal(t, swanerr.KindConfiguration, swanerr.ErrorKind(err))
			assert.Empty(t, repo.SourceURI())
		})
	}
}

func TestUploadRebindsRemoteLocation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := storage.NewMockStorage(t)
	s.On("UploadFolder", mock.Anything, "b1", "first", dir).Return(&storage.UploadResult{Bucket: "b1", Prefix: "first"}, nil).Once()
	s.On("UploadFolder", mock.Anything, "b2", "second", dir).Return(nil, swanerr.Errorf(swanerr.KindStorageIO, "disk on fire")).Once()

	repo := repository.New(s)
	repo.BindLocalDirectory(dir)
	repo.BindRemoteLocation("b0", "zero")

	_, err := repo.UploadToStorage(ctx, "b1", "first")
	require.NoError(t, err)
	bucket, prefix := repo.RemoteLocation()
	assert.Equal(t, "b1", bucket)
	assert.Equal(t, "first", prefix)

	_, err = repo.UploadToStorage(ctx, "b2", "second")
	assert.Equal(t, swanerr.KindStorageIO, swanerr.ErrorKind(err))
	bucket, prefix = repo.RemoteLocation()
	assert.Equal(t, "b2", bucket)
	assert.Equal(t, "second", prefix)
}

func TestGenerateSourceURIFailureKeepsSourceURIUnset(t *testing.T) {
	s := storage.NewMockStorage(t)
	s.On("ListFiles", mock.Anything, "b1", "app").Return([]storage.FileDescriptor{{Name: "index.html", ObjectName: "app/index.html"}}, nil)
	s.On("UploadFile", mock.Anything, "b1", "source.json", mock.Anything, false).
		Return(nil, swanerr.Errorf(swanerr.KindStorageConflict, "exists"))

	repo := repository.New(s)
	repo.BindRemoteLocation("b1", "app")

	_, err := repo.GenerateSourceURI(context.Background(), "b1", "source.json", filepath.Join(t.TempDir(), "source.json"), false)
	assert.True(t, swanerr.IsConflict(err))
	assert.Empty(t, repo.SourceURI())
}

func TestSingleFileScenario(t *testing.T) {
	ctx := context.Background()
	fake := fakeswan.New()
	server := httptest.NewServer(fake.Router())
	defer server.Close()
	fake.SetGatewayURL(server.URL)
	fake.AddBucket("b1")

	dir := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Hello World</h1>"), 0o644))

	repo := repository.New(storage.NewMCSClient(server.URL, fakeswan.DefaultAPIKey))
	repo.BindLocalDirectory(dir)

	result, err := repo.UploadToStorage(ctx, "b1", "app/")
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	file, err := repo.GenerateSourceURI(ctx, "b1", "app-source.json", filepath.Join(t.TempDir(), "source.json"), true)
	require.NoError(t, err)
	assert.Equal(t, file.URL, repo.SourceURI())
	assert.NotEmpty(t, repo.SourceURI())

	resp, err := http.Get(repo.SourceURI())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := manifest.Decode(resp.Body)
	require.NoError(t, err)
	require.Len(t, doc.Data.Files, 1)
	assert.Equal(t, "index.html", doc.Data.Files[0].Name)
	assert.Equal(t, result.Files[0].Cid, doc.Data.Files[0].Cid)
	assert.Equal(t, result.Files[0].URL, doc.Data.Files[0].URL)
	assert.NotZero(t, doc.Data.Files[0].CreatedAt)

	encoded, err := json.Marshal(repo)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"folder_dir": "`+dir+`",
		"bucket_name": "b1",
		"folder_path": "app/",
		"source_uri": "`+repo.SourceURI()+`"
	}`, string(encoded))
}

func TestMarshalUnboundRepository(t *testing.T) {
	encoded, err := json.Marshal(repository.New(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"folder_dir": null, "bucket_name": null, "folder_path": null, "source_uri": null}`, string(encoded))
}
