// Package orchestrator submits deployment tasks to the Swan orchestrator and
// queries their state.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/swanchain/go-swan-sdk/pkg/hardware"
	"github.com/swanchain/go-swan-sdk/pkg/metrics"
	"github.com/swanchain/go-swan-sdk/pkg/swanapi"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
)

// DeploymentRequest is the submission payload. Field order is the wire order.
type DeploymentRequest struct {
	Paid         float64 `json:"paid"`
	Duration     int64   `json:"duration"`
	CfgName      string  `json:"cfg_name"`
	Region       string  `json:"region"`
	StartIn      int64   `json:"start_in"`
	TxHash       *string `json:"tx_hash"`
	JobSourceURI string  `json:"job_source_uri"`
}

func NewDeploymentRequest(cfgName, region string, startAt time.Time, duration time.Duration, sourceURI string, paid float64) DeploymentRequest {
	return DeploymentRequest{
		Paid:         paid,
		Duration:     int64(duration / time.Second),
		CfgName:      cfgName,
		Region:       region,
		StartIn:      startAt.Unix(),
		JobSourceURI: sourceURI,
	}
}

func (r DeploymentRequest) validate() error {
	switch {
	case len(r.CfgName) == 0:
		return swanerr.Errorf(swanerr.KindValidation, "hardware configuration name required")
	case len(r.Region) == 0:
		return swanerr.Errorf(swanerr.KindValidation, "region required")
	case len(r.JobSourceURI) == 0:
		return swanerr.Errorf(swanerr.KindValidation, "job source URI required")
	case r.Duration <= 0:
		return swanerr.Errorf(swanerr.KindValidation, "duration must be positive, got %ds", r.Duration)
	case r.Paid < 0:
		return swanerr.Errorf(swanerr.KindValidation, "paid amount must not be negative")
	}
	return nil
}

type SubmissionResult struct {
	TaskUUID string
	Task     *Task
	TxHash   *string
	// Raw is the complete `data` member of the response.
	Raw json.RawMessage
}

type Orchestrator struct {
	api     swanapi.Requester
	catalog *hardware.Catalog
}

func New(api swanapi.Requester) *Orchestrator {
	return &Orchestrator{
		api:     api,
		catalog: hardware.NewCatalog(api),
	}
}

func (o *Orchestrator) Catalog() *hardware.Catalog {
	return o.catalog
}

// Submit creates a new task. Calls are not idempotent; every successful call
// creates a task.
func (o *Orchestrator) Submit(ctx context.Context, cfgName, region string, startAt time.Time, duration time.Duration, sourceURI string, paid float64) (*SubmissionResult, error) {
	return o.SubmitRequest(ctx, NewDeploymentRequest(cfgName, region, startAt, duration, sourceURI, paid))
}

// SubmitRequest verifies the hardware configuration against a fresh catalog
// and posts the request. Nothing is posted if the configuration does not
// serve the region.
func (o *Orchestrator) SubmitRequest(ctx context.Context, request DeploymentRequest) (*SubmissionResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "Submit deployment")
	defer span.End()
	span.SetAttributes(
		attribute.String("cfg_name", request.CfgName),
		attribute.String("region", request.Region),
	)

	err := request.validate()
	if err != nil {
		return nil, err
	}

	ok, err := o.catalog.Verify(ctx, request.CfgName, request.Region)
	if err != nil {
		return nil, fmt.Errorf("verify hardware: %w", err)
	}
	if !ok {
		metrics.DeploymentsRejected.Inc()
		return nil, swanerr.Errorf(swanerr.KindValidation, "hardware configuration %q is not available in region %q", request.CfgName, request.Region)
	}

	raw := json.RawMessage{}
	err = o.api.Request(ctx, http.MethodPost, swanapi.PathSpaceDeployment, request, &raw)
	if err != nil {
		return nil, submissionError(err)
	}

	result, err := decodeSubmission(raw)
	if err != nil {
		return nil, err
	}

	metrics.DeploymentsSubmitted.Inc()
	span.SetAttributes(attribute.String("task_uuid", result.TaskUUID))
	log.WithFields(log.Fields{
		"task_uuid": result.TaskUUID,
		"cfg_name":  request.CfgName,
		"region":    request.Region,
	}).Infof("Deployment submitted")

	return result, nil
}

func decodeSubmission(raw json.RawMessage) (*SubmissionResult, error) {
	data := struct {
		TaskUUID string  `json:"task_uuid"`
		Task     *Task   `json:"task"`
		TxHash   *string `json:"tx_hash"`
	}{}
	if len(raw) > 0 && string(raw) != "null" {
		err := json.Unmarshal(raw, &data)
		if err != nil {
			return nil, swanerr.Errorf(swanerr.KindSubmission, "decode submission response: %w", err)
		}
	}

	taskUUID := data.TaskUUID
	if len(taskUUID) == 0 && data.Task != nil {
		taskUUID = data.Task.UUID
	}
	if len(taskUUID) == 0 {
		return nil, swanerr.Errorf(swanerr.KindSubmission, "submission response carries no task uuid")
	}

	return &SubmissionResult{
		TaskUUID: taskUUID,
		Task:     data.Task,
		TxHash:   data.TxHash,
		Raw:      raw,
	}, nil
}

// submissionError keeps authentication and timeout failures recognizable.
func submissionError(err error) error {
	switch swanerr.ErrorKind(err) {
	case swanerr.KindAuth, swanerr.KindTimeout:
		return fmt.Errorf("submit deployment: %w", err)
	}
	return swanerr.ErrorWrap(swanerr.KindSubmission, fmt.Errorf("submit deployment: %w", err))
}

func validateTaskUUID(taskUUID string) error {
	err := uuid.Validate(taskUUID)
	if err != nil {
		return swanerr.Errorf(swanerr.KindValidation, "invalid task uuid %q: %w", taskUUID, err)
	}
	return nil
}

func (o *Orchestrator) GetDeploymentInfo(ctx context.Context, taskUUID string) (*DeploymentInfo, error) {
	err := validateTaskUUID(taskUUID)
	if err != nil {
		return nil, err
	}

	info := &DeploymentInfo{}
	err = o.api.Request(ctx, http.MethodGet, swanapi.PathDeploymentInfo+taskUUID, nil, info)
	if err != nil {
		return nil, fmt.Errorf("get deployment info for %s: %w", taskUUID, err)
	}
	if len(info.Task.UUID) == 0 {
		return nil, swanerr.Errorf(swanerr.KindNotFound, "task %s not found", taskUUID)
	}

	return info, nil
}

func (o *Orchestrator) GetPaymentInfo(ctx context.Context) ([]Payment, error) {
	payments := make([]Payment, 0)
	err := o.api.Request(ctx, http.MethodGet, swanapi.PathProviderPayments, nil, &payments)
	if err != nil {
		return nil, fmt.Errorf("get payment info: %w", err)
	}
	return payments, nil
}

func (o *Orchestrator) TerminateTask(ctx context.Context, taskUUID string) error {
	err := validateTaskUUID(taskUUID)
	if err != nil {
		return err
	}

	params := map[string]string{"task_uuid": taskUUID}
	err = o.api.Request(ctx, http.MethodPost, swanapi.PathTerminateTask, params, nil)
	if err != nil {
		return fmt.Errorf("terminate task %s: %w", taskUUID, err)
	}

	log.Infof("Task %s terminated", taskUUID)
	return nil
}
