package fakeswan

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/opencontainers/go-digest"
)

const maxUploadMemory = 32 << 20

func (s *Server) storageLogin(w http.ResponseWriter, r *http.Request) {
	params := struct {
		APIKey string `json:"apikey"`
	}{}
	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		failure(w, http.StatusBadRequest, "unable to unmarshal request body: "+err.Error())
		return
	}
	if params.APIKey != s.apiKey {
		failure(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	token, err := s.issueToken()
	if err != nil {
		failure(w, http.StatusInternalServerError, err.Error())
		return
	}
	success(w, "", map[string]string{"jwt_token": token})
}

func (s *Server) bucketList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buckets := make([]map[string]string, 0, len(s.buckets))
	for _, b := range s.buckets {
		buckets = append(buckets, map[string]string{
			"bucket_uid":  b.uid,
			"bucket_name": b.name,
		})
	}
	success(w, "", buckets)
}

// bucketFor must be called with the lock held.
func (s *Server) bucketFor(w http.ResponseWriter, uid string) (*bucket, bool) {
	b, ok := s.buckets[uid]
	if !ok {
		failure(w, http.StatusNotFound, fmt.Sprintf("bucket %q not found", uid))
	}
	return b, ok
}

func (s *Server) fileList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(query.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, query.Get("bucket_uid"))
	if !ok {
		return
	}

	files := sortedObjects(b, query.Get("prefix"))
	count := len(files)
	if offset > count {
		offset = count
	}
	end := offset + limit
	if end > count {
		end = count
	}

	success(w, "", map[string]any{
		"file_list": files[offset:end],
		"count":     count,
	})
}

func (s *Server) fileByObjectName(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, query.Get("bucket_uid"))
	if !ok {
		return
	}

	obj, ok := b.objects[query.Get("object_name")]
	if !ok {
		success(w, "", nil)
		return
	}
	success(w, "", obj.file)
}

// parentExists must be called with the lock held.
func parentExists(b *bucket, prefix string) bool {
	if len(prefix) == 0 {
		return true
	}
	parent, ok := b.objects[prefix]
	return ok && parent.file.IsFolder
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	params := struct {
		FileName  string `json:"file_name"`
		Prefix    string `json:"prefix"`
		BucketUID string `json:"bucket_uid"`
	}{}
	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		failure(w, http.StatusBadRequest, "unable to unmarshal request body: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, params.BucketUID)
	if !ok {
		return
	}
	if !parentExists(b, params.Prefix) {
		failure(w, http.StatusBadRequest, fmt.Sprintf("folder %q does not exist", params.Prefix))
		return
	}

	key := path.Join(params.Prefix, params.FileName)
	if _, exists := b.objects[key]; exists {
		failure(w, http.StatusConflict, fmt.Sprintf("object %q already exists", key))
		return
	}

	now := s.timestamp(s.now())
	s.nextFileID++
	b.objects[key] = &object{
		file: File{
			ID:         s.nextFileID,
			Name:       params.FileName,
			BucketUID:  b.uid,
			Prefix:     params.Prefix,
			ObjectName: key,
			IsFolder:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	success(w, "", s.nextFileID)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(maxUploadMemory)
	if err != nil {
		failure(w, http.StatusBadRequest, "unable to parse upload: "+err.Error())
		return
	}

	part, _, err := r.FormFile("file")
	if err != nil {
		failure(w, http.StatusBadRequest, "file part missing: "+err.Error())
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		failure(w, http.StatusBadRequest, err.Error())
		return
	}

	expected, err := digest.Parse(r.FormValue("file_hash"))
	if err != nil {
		failure(w, http.StatusBadRequest, "invalid file_hash: "+err.Error())
		return
	}
	if actual := expected.Algorithm().FromBytes(content); actual != expected {
		failure(w, http.StatusBadRequest, fmt.Sprintf("file_hash mismatch: got %s, expected %s", actual, expected))
		return
	}

	id, err := contentID(content)
	if err != nil {
		failure(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r.FormValue("bucket_uid"))
	if !ok {
		return
	}

	prefix, name := splitKey(path.Join(r.FormValue("prefix"), r.FormValue("file_name")))
	if !parentExists(b, prefix) {
		failure(w, http.StatusBadRequest, fmt.Sprintf("folder %q does not exist", prefix))
		return
	}

	key := path.Join(prefix, name)
	if existing, exists := b.objects[key]; exists {
		success(w, "", map[string]any{
			"file_id":       existing.file.ID,
			"file_is_exist": true,
		})
		return
	}

	now := s.timestamp(s.now())
	s.nextFileID++
	b.objects[key] = &object{
		content: content,
		file: File{
			ID:         s.nextFileID,
			Name:       name,
			BucketUID:  b.uid,
			Prefix:     prefix,
			ObjectName: key,
			FileHash:   expected.Encoded(),
			Size:       int64(len(content)),
			PayloadCid: id.String(),
			IpfsURL:    s.gatewayURL + "/ipfs/" + id.String(),
			PinStatus:  "Pinned",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	success(w, "", map[string]any{
		"file_id":       s.nextFileID,
		"file_is_exist": false,
	})
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("file_id"), 10, 64)
	if err != nil {
		failure(w, http.StatusBadRequest, "invalid file_id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.buckets {
		for key, obj := range b.objects {
			if obj.file.ID == id {
				delete(b.objects, key)
				success(w, "", nil)
				return
			}
		}
	}
	failure(w, http.StatusNotFound, fmt.Sprintf("file %d not found", id))
}
