package fakeswan

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	params := struct {
		APIKey string `json:"api_key"`
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
	success(w, "login successfully", token)
}

func (s *Server) getMachines(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	success(w, "", map[string]any{"hardware": s.machines})
}

func (s *Server) deploy(w http.ResponseWriter, r *http.Request) {
	submission := Submission{}
	err := json.NewDecoder(r.Body).Decode(&submission)
	if err != nil {
		failure(w, http.StatusBadRequest, "unable to unmarshal request body: "+err.Error())
		return
	}
	if len(submission.JobSourceURI) == 0 {
		failure(w, http.StatusBadRequest, "job_source_uri is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := &task{
		uuid:        uuid.NewString(),
		submission:  submission,
		progression: append([]string(nil), s.progression...),
		created:     now,
		updated:     now,
	}
	s.tasks[t.uuid] = t
	s.submissions = append(s.submissions, submission)

	success(w, "Task created", map[string]any{
		"task_uuid": t.uuid,
		"task":      s.taskData(t),
		"tx_hash":   submission.TxHash,
	})
}

func (s *Server) taskData(t *task) map[string]any {
	return map[string]any{
		"uuid":           t.uuid,
		"name":           "space-" + t.uuid[:8],
		"status":         t.status(),
		"duration":       t.submission.Duration,
		"start_in":       t.submission.StartIn,
		"end_at":         t.submission.StartIn + t.submission.Duration,
		"source":         "job_source_uri",
		"task_detail":    map[string]any{"hardware": t.submission.CfgName, "region": t.submission.Region},
		"tx_hash":        t.submission.TxHash,
		"job_source_uri": t.submission.JobSourceURI,
		"created_at":     t.created.Unix(),
		"updated_at":     t.updated.Unix(),
	}
}

func (s *Server) deploymentInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[chi.URLParam(r, "uuid")]
	if !ok {
		failure(w, http.StatusNotFound, "task not found")
		return
	}

	jobs := make([]map[string]any, 0)
	if t.status() == "Running" {
		jobs = append(jobs, map[string]any{
			"uuid":         t.uuid,
			"status":       "Running",
			"job_real_uri": "https://" + t.uuid[:8] + ".fakeswan.local",
			"hardware":     t.submission.CfgName,
		})
	}

	success(w, "", map[string]any{
		"task": s.taskData(t),
		"jobs": jobs,
	})

	if t.step < len(t.progression)-1 {
		t.step++
		t.updated = s.now()
	}
}

func (s *Server) payments(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments := make([]map[string]any, 0)
	for _, t := range s.tasks {
		if t.submission.Paid == 0 {
			continue
		}
		payments = append(payments, map[string]any{
			"task_uuid": t.uuid,
			"amount":    t.submission.Paid,
			"tx_hash":   t.submission.TxHash,
			"status":    "pending",
		})
	}
	success(w, "", payments)
}

func (s *Server) terminate(w http.ResponseWriter, r *http.Request) {
	params := struct {
		TaskUUID string `json:"task_uuid"`
	}{}
	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		failure(w, http.StatusBadRequest, "unable to unmarshal request body: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[params.TaskUUID]
	if !ok {
		failure(w, http.StatusNotFound, "task not found")
		return
	}
	t.progression = []string{"Terminated"}
	t.step = 0
	t.updated = s.now()

	success(w, "Task terminated", map[string]any{
		"task_uuid": t.uuid,
		"status":    t.status(),
	})
}
