package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"

	"github.com/swanchain/go-swan-sdk/pkg/metrics"
	"github.com/swanchain/go-swan-sdk/pkg/swanapi"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
)

const (
	DefaultMCSURL = "https://api.swanipfs.com"

	PathLogin         = "/api/v2/user/login_by_api_key"
	PathBucketList    = "/api/v2/oss_bucket/get_bucket_list"
	PathFileList      = "/api/v2/oss_file/get_file_list"
	PathFileByObject  = "/api/v2/oss_file/get_file_by_object_name"
	PathCreateFolder  = "/api/v2/oss_file/create_folder"
	PathUploadFile    = "/api/v2/oss_file/upload"
	PathDeleteFile    = "/api/v2/oss_file/delete"
	DefaultPageSize   = 100
	multipartFileName = "file"
)

var _ Storage = &MCSClient{}

type Bucket struct {
	UID  string `json:"bucket_uid"`
	Name string `json:"bucket_name"`
}

type fileList struct {
	Files []FileDescriptor `json:"file_list"`
	Count int              `json:"count"`
}

type uploadResponse struct {
	FileID      int64 `json:"file_id"`
	FileIsExist bool  `json:"file_is_exist"`
}

// MCSClient implements Storage on top of the MCS object storage REST API.
// It is not safe for concurrent use.
type MCSClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	token      string
	pageSize   int
	buckets    map[string]string
}

type Option func(*MCSClient)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *MCSClient) {
		c.httpClient = httpClient
	}
}

func WithPageSize(size int) Option {
	return func(c *MCSClient) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

func NewMCSClient(baseURL, apiKey string, opts ...Option) *MCSClient {
	if len(baseURL) == 0 {
		baseURL = DefaultMCSURL
	}
	c := &MCSClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		pageSize:   DefaultPageSize,
		buckets:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MCSClient) Login(ctx context.Context) error {
	if len(c.apiKey) == 0 {
		return swanerr.Errorf(swanerr.KindAuth, "storage API key required")
	}

	payload := map[string]string{"apikey": c.apiKey}
	out := struct {
		Token string `json:"jwt_token"`
	}{}
	err := c.doJSON(ctx, http.MethodPost, PathLogin, nil, payload, &out, false)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindAuth, fmt.Errorf("storage login: %w", err))
	}
	if len(out.Token) == 0 {
		return swanerr.Errorf(swanerr.KindAuth, "storage login: no session token in response")
	}

	c.token = out.Token
	log.Debugf("Logged in to storage at %s", c.baseURL)
	return nil
}

// BucketUID resolves a bucket name. Results are cached for the lifetime of the client.
func (c *MCSClient) BucketUID(ctx context.Context, name string) (string, error) {
	if uid, ok := c.buckets[name]; ok {
		return uid, nil
	}

	buckets := make([]Bucket, 0)
	err := c.doJSON(ctx, http.MethodGet, PathBucketList, nil, nil, &buckets, true)
	if err != nil {
		return "", storageError("list buckets", err)
	}

	for _, bucket := range buckets {
		c.buckets[bucket.Name] = bucket.UID
	}

	uid, ok := c.buckets[name]
	if !ok {
		return "", swanerr.Errorf(swanerr.KindNotFound, "bucket %q not found", name)
	}
	return uid, nil
}

func (c *MCSClient) ListFiles(ctx context.Context, bucket, prefix string) ([]FileDescriptor, error) {
	uid, err := c.BucketUID(ctx, bucket)
	if err != nil {
		return nil, err
	}

	prefix = normalizePrefix(prefix)
	files := make([]FileDescriptor, 0)

	for offset := 0; ; {
		query := url.Values{}
		query.Set("bucket_uid", uid)
		query.Set("prefix", prefix)
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("offset", strconv.Itoa(offset))

		page := &fileList{}
		err = c.doJSON(ctx, http.MethodGet, PathFileList, query, nil, page, true)
		if err != nil {
			return nil, storageError(fmt.Sprintf("list %s/%s", bucket, prefix), err)
		}

		files = append(files, page.Files...)
		offset += len(page.Files)
		if len(page.Files) == 0 || offset >= page.Count {
			break
		}
	}

	return files, nil
}

func (c *MCSClient) GetFile(ctx context.Context, bucket, key string) (*FileDescriptor, error) {
	uid, err := c.BucketUID(ctx, bucket)
	if err != nil {
		return nil, err
	}

	key = normalizePrefix(key)
	query := url.Values{}
	query.Set("bucket_uid", uid)
	query.Set("object_name", key)

	var file *FileDescriptor
	err = c.doJSON(ctx, http.MethodGet, PathFileByObject, query, nil, &file, true)
	if err != nil {
		return nil, storageError(fmt.Sprintf("get %s/%s", bucket, key), err)
	}
	if file == nil || len(file.ObjectName) == 0 {
		return nil, swanerr.Errorf(swanerr.KindNotFound, "object %s/%s not found", bucket, key)
	}

	return file, nil
}

func (c *MCSClient) UploadFile(ctx context.Context, bucket, key, localPath string, replace bool) (*FileDescriptor, error) {
	key = normalizePrefix(key)

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, swanerr.ErrorWrap(swanerr.KindStorageIO, err)
	}
	if !info.Mode().IsRegular() {
		return nil, swanerr.Errorf(swanerr.KindStorageIO, "%s is not a regular file", localPath)
	}

	existing, err := c.GetFile(ctx, bucket, key)
	switch {
	case err == nil && !replace:
		return nil, swanerr.Errorf(swanerr.KindStorageConflict, "object %s/%s already exists", bucket, key)
	case err == nil:
		log.Debugf("Replacing existing object %s/%s", bucket, key)
		err = c.deleteFile(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
	case !swanerr.IsNotFound(err):
		return nil, err
	}

	uid, err := c.BucketUID(ctx, bucket)
	if err != nil {
		return nil, err
	}

	err = c.upload(ctx, uid, key, localPath, info.Size())
	if err != nil {
		return nil, storageError(fmt.Sprintf("upload %s to %s/%s", localPath, bucket, key), err)
	}
	metrics.FilesUploaded.Inc()

	return c.GetFile(ctx, bucket, key)
}

func (c *MCSClient) UploadFolder(ctx context.Context, bucket, prefix, localDir string) (*UploadResult, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return nil, swanerr.ErrorWrap(swanerr.KindStorageIO, err)
	}
	if !info.IsDir() {
		return nil, swanerr.Errorf(swanerr.KindStorageIO, "%s is not a directory", localDir)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "Upload folder to storage")
	defer span.End()

	prefix = normalizePrefix(prefix)
	result := &UploadResult{
		Bucket: bucket,
		Prefix: prefix,
		Files:  make([]FileDescriptor, 0),
	}

	created, err := c.ensureFolderPath(ctx, bucket, prefix)
	if err != nil {
		return result, err
	}
	result.Folders += created

	log.Infof("Uploading %s to %s/%s...", localDir, bucket, prefix)

	err = filepath.WalkDir(localDir, func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return swanerr.ErrorWrap(swanerr.KindStorageIO, err)
		}
		if filePath == localDir {
			return nil
		}

		rel, err := filepath.Rel(localDir, filePath)
		if err != nil {
			return swanerr.ErrorWrap(swanerr.KindStorageIO, err)
		}
		key := path.Join(prefix, filepath.ToSlash(rel))

		switch {
		case entry.IsDir():
			parent, name := path.Split(key)
			created, err := c.createFolder(ctx, bucket, normalizePrefix(parent), name)
			if created {
				result.Folders++
			}
			return err
		case entry.Type().IsRegular():
			file, err := c.UploadFile(ctx, bucket, key, filePath, true)
			if err != nil {
				return err
			}
			log.Debugf("Uploaded %s (%s)", file.ObjectName, file.Cid)
			result.Files = append(result.Files, *file)
			return nil
		default:
			log.Warnf("Skipping %s: not a regular file", filePath)
			return nil
		}
	})
	if err != nil {
		return result, storageError(fmt.Sprintf("upload %s", localDir), err)
	}

	log.Infof("Uploaded %d files and %d folders to %s/%s", len(result.Files), result.Folders, bucket, prefix)

	return result, nil
}

// ensureFolderPath creates every folder along prefix that does not exist yet.
func (c *MCSClient) ensureFolderPath(ctx context.Context, bucket, prefix string) (int, error) {
	if len(prefix) == 0 {
		return 0, nil
	}
	created := 0
	parent := ""
	for _, segment := range strings.Split(prefix, "/") {
		ok, err := c.createFolder(ctx, bucket, parent, segment)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
		parent = path.Join(parent, segment)
	}
	return created, nil
}

// createFolder reports whether a folder was actually created.
func (c *MCSClient) createFolder(ctx context.Context, bucket, parent, name string) (bool, error) {
	existing, err := c.GetFile(ctx, bucket, path.Join(parent, name))
	switch {
	case err == nil && existing.IsFolder:
		return false, nil
	case err == nil:
		return false, swanerr.Errorf(swanerr.KindStorageConflict, "object %s/%s exists and is not a folder", bucket, existing.ObjectName)
	case !swanerr.IsNotFound(err):
		return false, err
	}

	uid, err := c.BucketUID(ctx, bucket)
	if err != nil {
		return false, err
	}

	payload := map[string]string{
		"file_name":  name,
		"prefix":     parent,
		"bucket_uid": uid,
	}
	err = c.doJSON(ctx, http.MethodPost, PathCreateFolder, nil, payload, nil, true)
	if err != nil {
		return false, storageError(fmt.Sprintf("create folder %s/%s", bucket, path.Join(parent, name)), err)
	}
	metrics.FoldersCreated.Inc()

	return true, nil
}

func (c *MCSClient) deleteFile(ctx context.Context, id int64) error {
	query := url.Values{}
	query.Set("file_id", strconv.FormatInt(id, 10))
	err := c.doJSON(ctx, http.MethodGet, PathDeleteFile, query, nil, nil, true)
	if err != nil {
		return storageError(fmt.Sprintf("delete file %d", id), err)
	}
	return nil
}

func (c *MCSClient) upload(ctx context.Context, bucketUID, key, localPath string, size int64) error {
	dgst, err := fileDigest(localPath)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindStorageIO, err)
	}

	prefix, name := path.Split(key)

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		writer.CloseWithError(writeUploadForm(form, map[string]string{
			"bucket_uid": bucketUID,
			"prefix":     normalizePrefix(prefix),
			"file_name":  name,
			"file_size":  strconv.FormatInt(size, 10),
			"file_hash":  dgst.String(),
		}, localPath))
	}()

	out := &uploadResponse{}
	err = c.do(ctx, http.MethodPost, PathUploadFile, nil, reader, form.FormDataContentType(), out, true)
	reader.Close()
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"file_id": out.FileID,
		"digest":  dgst.String(),
	}).Debugf("Stored %s", key)

	return nil
}

func writeUploadForm(form *multipart.Writer, fields map[string]string, localPath string) error {
	for key, val := range fields {
		err := form.WriteField(key, val)
		if err != nil {
			return err
		}
	}

	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	part, err := form.CreateFormFile(multipartFileName, filepath.Base(localPath))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	if err != nil {
		return err
	}

	return form.Close()
}

func fileDigest(localPath string) (digest.Digest, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return digest.FromReader(file)
}

func (c *MCSClient) ensureSession(ctx context.Context) error {
	if len(c.token) > 0 {
		return nil
	}
	return c.Login(ctx)
}

func (c *MCSClient) doJSON(ctx context.Context, method, apiPath string, query url.Values, payload, out any, authenticated bool) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return swanerr.ErrorWrap(swanerr.KindInternal, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, apiPath, query, body, contentType, out, authenticated)
}

func (c *MCSClient) do(ctx context.Context, method, apiPath string, query url.Values, body io.Reader, contentType string, out any, authenticated bool) error {
	if authenticated {
		err := c.ensureSession(ctx)
		if err != nil {
			return err
		}
	}

	target := c.baseURL + apiPath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindInternal, err)
	}
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	telemetry.InjectHeaders(ctx, req.Header)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequest(method, apiPath, 0, time.Since(started))
		if ctx.Err() != nil {
			return swanerr.Errorf(swanerr.KindTimeout, "%s %s: %w", method, apiPath, ctx.Err())
		}
		return swanerr.Errorf(swanerr.KindTransport, "%s %s: %w", method, apiPath, err)
	}
	defer resp.Body.Close()
	metrics.APIRequest(method, apiPath, resp.StatusCode, time.Since(started))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return swanerr.Errorf(swanerr.KindTransport, "%s %s: read response: %w", method, apiPath, err)
	}

	return swanapi.DecodeResponse(method, apiPath, resp.StatusCode, data, out)
}

// storageError reclassifies transport-level failures as storage failures, keeping
// authentication, not-found and timeout errors as they are.
func storageError(op string, err error) error {
	switch swanerr.ErrorKind(err) {
	case swanerr.KindAuth, swanerr.KindNotFound, swanerr.KindTimeout, swanerr.KindStorageConflict, swanerr.KindStorageIO:
		return err
	}
	return swanerr.ErrorWrap(swanerr.KindStorageIO, fmt.Errorf("%s: %w", op, err))
}

func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, "/")
}
