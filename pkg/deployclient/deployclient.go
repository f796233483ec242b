package deployclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	ocodes "go.opentelemetry.io/otel/codes"
	otrace "go.opentelemetry.io/otel/trace"

	"github.com/swanchain/go-swan-sdk/pkg/orchestrator"
	"github.com/swanchain/go-swan-sdk/pkg/repository"
	"github.com/swanchain/go-swan-sdk/pkg/storage"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
)

// Client is the part of the orchestrator a Deployer talks to.
type Client interface {
	SubmitRequest(ctx context.Context, request orchestrator.DeploymentRequest) (*orchestrator.SubmissionResult, error)
	GetDeploymentInfo(ctx context.Context, taskUUID string) (*orchestrator.DeploymentInfo, error)
}

var _ Client = &orchestrator.Orchestrator{}

type Deployer struct {
	Client Client
}

type Result struct {
	Submission *orchestrator.SubmissionResult
	// Info is the last observed deployment state, or nil if never queried.
	Info *orchestrator.DeploymentInfo
}

// Prepare resolves template variables, the deployment file and the source
// URI into a deployment request. Unless a source URI is configured, the local
// directory is uploaded and its manifest published first. In dry-run mode
// nothing is uploaded and the request carries no source URI.
func Prepare(ctx context.Context, cfg *Config, store storage.Storage) (*orchestrator.DeploymentRequest, error) {
	var err error
	templateVariables := make(TemplateVariables)

	if len(cfg.VariablesFile) > 0 {
		templateVariables, err = templateVariablesFromFile(cfg.VariablesFile)
		if err != nil {
			return nil, swanerr.Errorf(swanerr.KindConfiguration, "load template variables: %s", err)
		}
	}

	if len(cfg.Variables) > 0 {
		templateOverrides := templateVariablesFromSlice(cfg.Variables)
		for key, val := range templateOverrides {
			if oldval, ok := templateVariables[key]; ok {
				log.Warnf("Overwriting template variable '%s'; previous value was '%v'", key, oldval)
			}
			log.Infof("Setting template variable '%s' to '%v'", key, val)
			templateVariables[key] = val
		}
	}

	if len(cfg.DeploymentFile) > 0 {
		file, err := LoadDeploymentFile(cfg.DeploymentFile, templateVariables)
		if err != nil {
			if cfg.PrintPayload {
				printErrorContext(cfg.DeploymentFile, err)
			}
			return nil, err
		}
		err = file.Apply(cfg)
		if err != nil {
			return nil, err
		}
	}

	err = cfg.ValidateDeployment()
	if err != nil {
		return nil, err
	}

	if len(cfg.SourceURI) == 0 {
		if cfg.DryRun {
			log.Infof("Dry run: not uploading %s to %s/%s", cfg.Directory, cfg.Bucket, cfg.Prefix)
		} else {
			cfg.SourceURI, err = PublishSources(ctx, cfg, store)
			if err != nil {
				return nil, err
			}
		}
	}

	request := orchestrator.NewDeploymentRequest(cfg.CfgName, cfg.Region, time.Now().Add(cfg.StartIn), cfg.Duration, cfg.SourceURI, cfg.Paid)
	if len(cfg.TxHash) > 0 {
		txHash := cfg.TxHash
		request.TxHash = &txHash
	}

	return &request, nil
}

// PublishSources uploads cfg.Directory to cfg.Bucket/cfg.Prefix and publishes
// its manifest. The manifest URL is returned as the source URI.
func PublishSources(ctx context.Context, cfg *Config, store storage.Storage) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "Publish deployment sources")
	defer span.End()

	repo := repository.New(store)
	repo.BindLocalDirectory(cfg.Directory)

	log.Infof("Uploading %s to %s/%s...", cfg.Directory, cfg.Bucket, cfg.Prefix)
	result, err := repo.UploadToStorage(ctx, cfg.Bucket, cfg.Prefix)
	if err != nil {
		span.SetStatus(ocodes.Error, err.Error())
		return "", err
	}
	log.Infof("Uploaded %d files, created %d folders", len(result.Files), result.Folders)

	scratchDir, err := os.MkdirTemp("", "swan-manifest-")
	if err != nil {
		return "", swanerr.Errorf(swanerr.KindStorageIO, "create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	// Kept outside the prefix so later uploads never list an old manifest.
	key := ManifestObjectKey(cfg.Prefix, cfg.ManifestKey)
	_, err = repo.GenerateSourceURI(ctx, cfg.Bucket, key, filepath.Join(scratchDir, path.Base(key)), cfg.Replace)
	if err != nil {
		span.SetStatus(ocodes.Error, err.Error())
		return "", err
	}

	return repo.SourceURI(), nil
}

// ManifestObjectKey is the key the manifest of prefix is published under.
func ManifestObjectKey(prefix, name string) string {
	return strings.Trim(prefix, "/") + "-" + name
}

func printErrorContext(file string, err error) {
	content, er := os.ReadFile(file)
	if er != nil {
		return
	}
	var cause *swanerr.Error
	if !errors.As(err, &cause) {
		return
	}
	msg := cause.Err.Error()
	if len(msg) > len(file)+2 {
		msg = msg[len(file)+2:]
	}
	line, er := detectErrorLine(msg)
	if er != nil {
		return
	}
	for _, l := range errorContext(string(content), line) {
		fmt.Println(l)
	}
}

// Deploy submits the request exactly once, then optionally polls the task
// until it reaches the state selected by cfg.WaitFor. Failed and terminated
// tasks end the wait with KindDeploymentFailed.
func (d *Deployer) Deploy(ctx context.Context, cfg *Config, request *orchestrator.DeploymentRequest) (*Result, error) {
	// Root span for tracing.
	// All sub-spans must be created from this context.
	ctx, span := telemetry.Tracer().Start(ctx, "Submit deployment and wait for task")
	defer span.End()

	metadata := BuildEnvironmentMetadata()
	span.SetAttributes(metadataAttributes(metadata)...)

	result := &Result{}
	summary := &Summary{
		CfgName:   request.CfgName,
		Region:    request.Region,
		SourceURI: request.JobSourceURI,
		TraceID:   telemetry.TraceID(ctx),
		Metadata:  metadata,
		StartedAt: time.Now(),
	}
	defer func() {
		summary.FinishedAt = time.Now()
		err := summary.AppendTo(cfg.SummaryFile)
		if err != nil {
			log.Warnf("Write deployment summary: %s", err)
		}
	}()

	fail := func(err error) (*Result, error) {
		summary.Error = err.Error()
		span.SetStatus(ocodes.Error, err.Error())
		span.RecordError(err)
		return result, err
	}

	log.Infof("Submitting deployment request to %s in %s...", request.CfgName, request.Region)

	submission, err := d.Client.SubmitRequest(ctx, *request)
	if err != nil {
		if ctx.Err() != nil {
			return fail(swanerr.Errorf(swanerr.KindTimeout, "deployment timed out: %w", ctx.Err()))
		}
		return fail(err)
	}
	result.Submission = submission
	summary.TaskUUID = submission.TaskUUID
	span.SetAttributes(attribute.String("task_uuid", submission.TaskUUID))

	log.Infof("Deployment information:")
	log.Infof("---")
	log.Infof("task.........: %s", submission.TaskUUID)
	log.Infof("hardware.....: %s", request.CfgName)
	log.Infof("region.......: %s", request.Region)
	log.Infof("source.......: %s", request.JobSourceURI)
	log.Infof("starts.......: %s", time.Unix(request.StartIn, 0).Local())
	log.Infof("duration.....: %s", time.Duration(request.Duration)*time.Second)
	if submission.TxHash != nil {
		log.Infof("tx hash......: %s", *submission.TxHash)
	}
	if len(summary.TraceID) > 0 {
		log.Infof("trace........: %s", summary.TraceID)
	}
	log.Info("---")

	if !cfg.Wait {
		return result, nil
	}

	log.Infof("Waiting for task %s to be %s...", submission.TaskUUID, cfg.WaitFor)

	var lastState orchestrator.TaskState
	for {
		var info *orchestrator.DeploymentInfo
		err = retryTransient(ctx, cfg.RetryInterval, cfg.Retry, func() error {
			info, err = d.Client.GetDeploymentInfo(ctx, submission.TaskUUID)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return fail(swanerr.Errorf(swanerr.KindTimeout, "deployment timed out in state %q: %w", lastState, ctx.Err()))
			}
			return fail(err)
		}

		result.Info = info
		state := info.Task.Status
		summary.State = state
		summary.URLs = info.RealURLs()
		if state != lastState {
			logTaskState(span, info)
			lastState = state
		}

		switch {
		case state == orchestrator.StateFailed, state == orchestrator.StateTerminated:
			return fail(swanerr.Errorf(swanerr.KindDeploymentFailed, "task %s is %s", submission.TaskUUID, state))
		case state.Finished():
			return result, nil
		case cfg.WaitFor == WaitForRunning && state == orchestrator.StateRunning:
			return result, nil
		}

		select {
		case <-ctx.Done():
			return fail(swanerr.Errorf(swanerr.KindTimeout, "deployment timed out in state %q: %w", lastState, ctx.Err()))
		case <-time.After(cfg.PollInterval):
		}
	}
}

func logTaskState(span otrace.Span, info *orchestrator.DeploymentInfo) {
	span.AddEvent("task state", otrace.WithAttributes(attribute.String("state", string(info.Task.Status))))
	fields := log.Fields{
		"task_uuid": info.Task.UUID,
		"state":     info.Task.Status,
	}
	if !info.Task.Status.Known() {
		log.WithFields(fields).Warnf("Task reports unrecognized state %q", info.Task.Status)
		return
	}
	log.WithFields(fields).Infof("Task is %s", info.Task.Status)
	for _, url := range info.RealURLs() {
		log.WithFields(fields).Infof("Deployment available at %s", url)
	}
}

func retriable(err error) bool {
	return swanerr.ErrorKind(err) == swanerr.KindTransport
}

func retryTransient(ctx context.Context, interval time.Duration, retry bool, fn func() error) error {
	for {
		err := fn()
		if !retry || !retriable(err) || ctx.Err() != nil {
			return err
		}
		log.Warnf("%s (retrying in %s...)", err, interval)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(interval):
		}
	}
}
