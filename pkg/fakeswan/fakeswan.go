// Package fakeswan is an in-memory stand-in for the Swan orchestrator and the
// MCS storage service. It speaks the same wire format as the real services and
// backs the SDK's integration tests and the local `fakeswan` command.
package fakeswan

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	chi_middleware "github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/multiformats/go-multihash"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAPIKey   = "fake-api-key"
	DefaultTokenTTL = time.Hour

	timestampLayout = time.RFC3339
)

// Default progression of a task's status, one step per deployment info query.
var DefaultProgression = []string{"Requested", "Scheduled", "Running"}

type Machine struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Region      []string `json:"region"`
	Price       string   `json:"price"`
	Status      string   `json:"status"`
}

// Submission is a deployment request as received by the fake orchestrator.
type Submission struct {
	Paid         float64 `json:"paid"`
	Duration     int64   `json:"duration"`
	CfgName      string  `json:"cfg_name"`
	Region       string  `json:"region"`
	StartIn      int64   `json:"start_in"`
	TxHash       *string `json:"tx_hash"`
	JobSourceURI string  `json:"job_source_uri"`
}

type task struct {
	uuid        string
	submission  Submission
	progression []string
	step        int
	created     time.Time
	updated     time.Time
}

func (t *task) status() string {
	return t.progression[t.step]
}

type object struct {
	file    File
	content []byte
}

// File is the storage service's file record.
type File struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	BucketUID  string `json:"bucket_uid"`
	Prefix     string `json:"prefix"`
	ObjectName string `json:"object_name"`
	FileHash   string `json:"filehash"`
	Size       int64  `json:"size"`
	PayloadCid string `json:"payloadCid"`
	IpfsURL    string `json:"ipfs_url"`
	PinStatus  string `json:"pin_status"`
	IsFolder   bool   `json:"is_folder"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type bucket struct {
	uid     string
	name    string
	objects map[string]*object
}

type Server struct {
	mu sync.Mutex

	apiKey      string
	tokenTTL    time.Duration
	secret      []byte
	now         func() time.Time
	gatewayURL  string
	progression []string

	machines    []Machine
	tasks       map[string]*task
	submissions []Submission
	buckets     map[string]*bucket
	nextFileID  int64
	requests    map[string]int
}

type Option func(*Server)

func WithAPIKey(apiKey string) Option {
	return func(s *Server) {
		s.apiKey = apiKey
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithProgression sets the statuses every new task walks through.
func WithProgression(statuses ...string) Option {
	return func(s *Server) {
		s.progression = statuses
	}
}

func WithMachines(machines ...Machine) Option {
	return func(s *Server) {
		s.machines = machines
	}
}

func New(opts ...Option) *Server {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	s := &Server{
		apiKey:      DefaultAPIKey,
		tokenTTL:    DefaultTokenTTL,
		secret:      secret,
		now:         time.Now,
		progression: DefaultProgression,
		machines:    DefaultMachines(),
		tasks:       make(map[string]*task),
		buckets:     make(map[string]*bucket),
		requests:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func DefaultMachines() []Machine {
	return []Machine{
		{ID: 0, Name: "C1ae.small", Description: "CPU only · 2 vCPU · 2 GiB", Type: "CPU", Region: []string{"North Carolina-US"}, Price: "0.0", Status: "available"},
		{ID: 1, Name: "C1ae.medium", Description: "CPU only · 4 vCPU · 4 GiB", Type: "CPU", Region: []string{"North Carolina-US", "Quebec-CA"}, Price: "1.0", Status: "available"},
		{ID: 2, Name: "G1ae.small", Description: "Nvidia 3080 · 4 vCPU · 8 GiB", Type: "GPU", Region: []string{"Quebec-CA"}, Price: "10.0", Status: "available"},
	}
}

// SetGatewayURL sets the base of the public URLs handed out for stored objects.
// Point it at the server itself to make them retrievable through /ipfs/{cid}.
func (s *Server) SetGatewayURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gatewayURL = strings.TrimSuffix(url, "/")
}

// AddBucket creates a bucket and returns its uid.
func (s *Server) AddBucket(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := uuid.NewString()
	s.buckets[uid] = &bucket{
		uid:     uid,
		name:    name,
		objects: make(map[string]*object),
	}
	return uid
}

// Object returns the stored content of bucket/key.
func (s *Server) Object(bucketName, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buckets {
		if b.name != bucketName {
			continue
		}
		obj, ok := b.objects[key]
		if !ok || obj.file.IsFolder {
			return nil, false
		}
		return obj.content, true
	}
	return nil, false
}

func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

// Requests returns how many requests were served for a route pattern, e.g. "POST /v1/space_deployment".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// SetTaskStatus pins a task to status for all future queries.
func (s *Server) SetTaskStatus(taskUUID, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskUUID]
	if !ok {
		return false
	}
	t.progression = []string{status}
	t.step = 0
	t.updated = s.now()
	return true
}

func (s *Server) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(
		chi_middleware.Recoverer,
		s.countRequests,
	)

	router.Post("/login_by_api_key", s.login)
	router.Get("/ipfs/{cid}", s.gateway)

	router.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/cp/machines", s.getMachines)
		r.Post("/v1/space_deployment", s.deploy)
		r.Get("/v1/space_deployment/{uuid}", s.deploymentInfo)
		r.Get("/provider/payments", s.payments)
		r.Post("/terminate_task", s.terminate)
	})

	router.Route("/api/v2", func(r chi.Router) {
		r.Post("/user/login_by_api_key", s.storageLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/oss_bucket/get_bucket_list", s.bucketList)
			r.Get("/oss_file/get_file_list", s.fileList)
			r.Get("/oss_file/get_file_by_object_name", s.fileByObjectName)
			r.Post("/oss_file/create_folder", s.createFolder)
			r.Post("/oss_file/upload", s.upload)
			r.Get("/oss_file/delete", s.deleteFile)
		})
	})

	return router
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		s.mu.Lock()
		s.requests[r.Method+" "+route]++
		s.mu.Unlock()
	})
}

func (s *Server) issueToken() (string, error) {
	now := s.now()
	token, err := jwt.NewBuilder().
		Issuer("fakeswan").
		Subject("0x0000000000000000000000000000000000000000").
		IssuedAt(now).
		Expiration(now.Add(s.tokenTTL)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_, err := jwt.Parse([]byte(token),
			jwt.WithKey(jwa.HS256, s.secret),
			jwt.WithClock(jwt.ClockFunc(s.now)),
		)
		if err != nil {
			log.Debugf("fakeswan: rejecting token: %s", err)
			failure(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func success(w http.ResponseWriter, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func failure(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "failed",
		"message": message,
	})
}

func (s *Server) timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func contentID(content []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(content, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

func (s *Server) gateway(w http.ResponseWriter, r *http.Request) {
	id, err := cid.Decode(chi.URLParam(r, "cid"))
	if err != nil {
		failure(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buckets {
		for _, obj := range b.objects {
			if obj.file.PayloadCid == id.String() {
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write(obj.content)
				return
			}
		}
	}
	failure(w, http.StatusNotFound, "content not found")
}

func sortedObjects(b *bucket, prefix string) []File {
	files := make([]File, 0)
	for _, obj := range b.objects {
		if obj.file.Prefix == prefix {
			files = append(files, obj.file)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ObjectName < files[j].ObjectName
	})
	return files
}

func splitKey(key string) (string, string) {
	prefix, name := path.Split(strings.Trim(key, "/"))
	return strings.Trim(prefix, "/"), name
}
