package orchestrator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swanchain/go-swan-sdk/pkg/fakeswan"
	"github.com/swanchain/go-swan-sdk/pkg/orchestrator"
	"github.com/swanchain/go-swan-sdk/pkg/swanapi"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
)

const (
	sourceURI = "https://ipfs.example/ipfs/bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"
	machines  = `{"hardware": [{"id": 0, "name": "C1ae.small", "description": "CPU only · 2 vCPU · 2 GiB", "type": "CPU", "region": ["North Carolina-US"], "price": "0.0", "status": "available"}]}`
)

var startAt = time.Unix(1700000000, 0)

func decodeInto(data string) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		out := args.Get(4)
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = json.RawMessage(data)
			return
		}
		if err := json.Unmarshal([]byte(data), out); err != nil {
			panic(err)
		}
	}
}

func withCatalog(t *testing.T) *swanapi.MockRequester {
	api := swanapi.NewMockRequester(t)
	api.On("Request", mock.Anything, http.MethodGet, swanapi.PathMachines, nil, mock.Anything).
		Run(decodeInto(machines)).
		Return(nil)
	return api
}

func TestSubmitRejectedWithoutPosting(t *testing.T) {
	api := withCatalog(t)

	for _, tc := range []struct {
		name   string
		cfg    string
		region string
	}{
		{name: "region not served", cfg: "C1ae.small", region: "EU-West"},
		{name: "unknown config", cfg: "G1ae.huge", region: "North Carolina-US"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result, err := orchestrator.New(api).Submit(context.Background(), tc.cfg, tc.region, startAt, time.Hour, sourceURI, 0)
			assert.Nil(t, result)
			assert.Equal(t, swanerr.KindValidation, swanerr.ErrorKind(err))
		})
	}

	api.AssertNotCalled(t, "Request", mock.Anything, http.MethodPost, swanapi.PathSpaceDeployment, mock.Anything, mock.Anything)
}

func TestSubmitLocalValidation(t *testing.T) {
	api := swanapi.NewMockRequester(t)
	o := orchestrator.New(api)

	_, err := o.Submit(context.Background(), "C1ae.small", "North Carolina-US", startAt, time.Hour, "", 0)
	assert.Equal(t, swanerr.KindValidation, swanerr.ErrorKind(err))

	_, err = o.Submit(context.Background(), "C1ae.small", "North Carolina-US", startAt, 0, sourceURI, 0)
	assert.Equal(t, swanerr.KindValidation, swanerr.ErrorKind(err))

	api.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPayload(t *testing.T) {
	api := withCatalog(t)
	taskUUID := uuid.NewString()

	var sent []byte
	api.On("Request", mock.Anything, http.MethodPost, swanapi.PathSpaceDeployment, mock.AnythingOfType("orchestrator.DeploymentRequest"), mock.Anything).
		Run(func(args mock.Arguments) {
			var err error
			sent, err = json.Marshal(args.Get(3))
			require.NoError(t, err)
			decodeInto(`{"task_uuid": "` + taskUUID + `", "tx_hash": null}`)(args)
		}).
		Return(nil).Once()

	result, err := orchestrator.New(api).Submit(context.Background(), "C1ae.small", "North Carolina-US", startAt, time.Hour, sourceURI, 0)
	require.NoError(t, err)
	assert.Equal(t, taskUUID, result.TaskUUID)
	assert.Nil(t, result.TxHash)

	assert.Equal(t,
		`{"paid":0,"duration":3600,"cfg_name":"C1ae.small","region":"North Carolina-US","start_in":1700000000,"tx_hash":null,"job_source_uri":"`+sourceURI+`"}`,
		string(sent),
	)
}

func TestSubmitRequestWithTxHash(t *testing.T) {
	api := withCatalog(t)
	taskUUID := uuid.NewString()
	txHash := "0xabc"

	api.On("Request", mock.Anything, http.MethodPost, swanapi.PathSpaceDeployment, mock.MatchedBy(func(r orchestrator.DeploymentRequest) bool {
		return r.TxHash != nil && *r.TxHash == txHash && r.Paid == 1.5
	}), mock.Anything).
		Run(decodeInto(`{"task": {"uuid": "` + taskUUID + `", "status": "requested"}}`)).
		Return(nil).Once()

	request := orchestrator.NewDeploymentRequest("C1ae.small", "North Carolina-US", startAt, time.Hour, sourceURI, 1.5)
	request.TxHash = &txHash

	result, err := orchestrator.New(api).SubmitRequest(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, taskUUID, result.TaskUUID)
	require.NotNil(t, result.Task)
	assert.Equal(t, orchestrator.StateRequested, result.Task.Status)
}

func TestSubmitFailures(t *testing.T) {
	for _, tc := range []struct {
		name     string
		data     string
		err      error
		expected swanerr.Kind
	}{
		{name: "no task uuid", data: `{"message": "ok"}`, expected: swanerr.KindSubmission},
		{name: "null data", data: `null`, expected: swanerr.KindSubmission},
		{name: "undecodable data", data: `[1, 2]`, expected: swanerr.KindSubmission},
		{name: "transport failure", err: swanerr.Errorf(swanerr.KindTransport, "connection reset"), expected: swanerr.KindSubmission},
		{name: "remote rejection", err: swanerr.Errorf(swanerr.KindNotFound, "404"), expected: swanerr.KindSubmission},
		{name: "session rejected", err: swanerr.Errorf(swanerr.KindAuth, "401"), expected: swanerr.KindAuth},
		{name: "deadline", err: swanerr.Errorf(swanerr.KindTimeout, "deadline exceeded"), expected: swanerr.KindTimeout},
	} {
		t.Run(tc.name, func(t *testing.T) {
			api := withCatalog(t)
			call := api.On("Request", mock.Anything, http.MethodPost, swanapi.PathSpaceDeployment, mock.Anything, mock.Anything)
			if tc.err != nil {
				call.Return(tc.err)
			} else {
				call.Run(decodeInto(tc.data)).Return(nil)
			}

			_, err := orchestrator.New(api).Submit(context.Background(), "C1ae.small", "North Carolina-US", startAt, time.Hour, sourceURI, 0)
			assert.Equal(t, tc.expected, swanerr.ErrorKind(err))
		})
	}
}

func TestSubmitCatalogFailure(t *testing.T) {
	api := swanapi.NewMockRequester(t)
	api.On("Request", mock.Anything, http.MethodGet, swanapi.PathMachines, nil, mock.Anything).
		Return(swanerr.Errorf(swanerr.KindTransport, "unreachable"))

	_, err := orchestrator.New(api).Submit(context.Background(), "C1ae.small", "North Carolina-US", startAt, time.Hour, sourceURI, 0)
	assert.Equal(t, swanerr.KindTransport, swanerr.ErrorKind(err))
	api.AssertNotCalled(t, "Request", mock.Anything, http.MethodPost, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetDeploymentInfo(t *testing.T) {
	ctx := context.Background()
	taskUUID := uuid.NewString()

	t.Run("malformed id is rejected locally", func(t *testing.T) {
		api := swanapi.NewMockRequester(t)
		_, err := orchestrator.New(api).GetDeploymentInfo(ctx, "../payments")
		assert.Equal(t, swanerr.KindValidation, swanerr.ErrorKind(err))
	})

	t.Run("unknown task", func(t *testing.T) {
		api := swanapi.NewMockRequester(t)
		api.On("Request", mock.Anything, http.MethodGet, swanapi.PathDeploymentInfo+taskUUID, nil, mock.Anything).
			Return(swanerr.Errorf(swanerr.KindNotFound, "task not found"))
		_, err := orchestrator.New(api).GetDeploymentInfo(ctx, taskUUID)
		assert.True(t, swanerr.IsNotFound(err))
	})

	t.Run("empty response", func(t *testing.T) {
		api := swanapi.NewMockRequester(t)
		api.On("Request", mock.Anything, http.MethodGet, swanapi.PathDeploymentInfo+taskUUID, nil, mock.Anything).
			Run(decodeInto(`{}`)).Return(nil)
		_, err := orchestrator.New(api).GetDeploymentInfo(ctx, taskUUID)
		assert.True(t, swanerr.IsNotFound(err))
	})

	t.Run("transport failure", func(t *testing.T) {
		api := swanapi.NewMockRequester(t)
		api.On("Request", mock.Anything, http.MethodGet, swanapi.PathDeploymentInfo+taskUUID, nil, mock.Anything).
			Return(swanerr.Errorf(swanerr.KindTransport, "502"))
		_, err := orchestrator.New(api).GetDeploymentInfo(ctx, taskUUID)
		assert.Equal(t, swanerr.KindTransport, swanerr.ErrorKind(err))
	})

	t.Run("running task", func(t *testing.T) {
		api := swanapi.NewMockRequester(t)
		api.On("Request", mock.Anything, http.MethodGet, swanapi.PathDeploymentInfo+taskUUID, nil, mock.Anything).
			Run(decodeInto(`{
				"task": {"uuid": "` + taskUUID + `", "status": "RUNNING", "created_at": 1678730810, "updated_at": "2023-03-13 18:06:50"},
				"jobs": [
					{"uuid": "a", "status": "Running", "job_real_uri": "https://a.example"},
					{"uuid": "b", "status": "Scheduled", "job_real_uri": ""}
				]
			}`)).Return(nil)

		info, err := orchestrator.New(api).GetDeploymentInfo(ctx, taskUUID)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.StateRunning, info.Task.Status)
		assert.False(t, info.Task.Status.Finished())
		assert.Equal(t, int64(1678730810), info.Task.CreatedAt.Unix())
		assert.Equal(t, int64(1678730810), info.Task.UpdatedAt.Unix())
		assert.Equal(t, []string{"https://a.example"}, info.RealURLs())
	})
}

func TestTaskState(t *testing.T) {
	assert.Equal(t, orchestrator.StateCompleted, orchestrator.ParseTaskState(" completed "))
	assert.Equal(t, orchestrator.TaskState("Paused"), orchestrator.ParseTaskState("Paused"))
	assert.False(t, orchestrator.TaskState("Paused").Known())
	assert.True(t, orchestrator.StateScheduled.Known())

	for state, finished := range map[orchestrator.TaskState]bool{
		orchestrator.StateRequested:  false,
		orchestrator.StateScheduled:  false,
		orchestrator.StateRunning:    false,
		orchestrator.StateCompleted:  true,
		orchestrator.StateFailed:     true,
		orchestrator.StateTerminated: true,
	} {
		assert.Equal(t, finished, state.Finished(), state)
	}
}

func TestLifecycleAgainstFakeService(t *testing.T) {
	ctx := context.Background()
	fake := fakeswan.New()
	server := httptest.NewServer(fake.Router())
	defer server.Close()

	o := orchestrator.New(swanapi.New(server.URL, fakeswan.DefaultAPIKey))

	_, err := o.Submit(ctx, "G1ae.small", "North Carolina-US", startAt, time.Hour, sourceURI, 0)
	assert.Equal(t, swanerr.KindValidation, swanerr.ErrorKind(err))
	assert.Equal(t, 0, fake.Requests("POST /v1/space_deployment"))

	result, err := o.Submit(ctx, "C1ae.medium", "Quebec-CA", startAt, 2*time.Hour, sourceURI, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Requests("POST /v1/space_deployment"))
	assert.Equal(t, []fakeswan.Submission{{
		Paid:         2,
		Duration:     7200,
		CfgName:      "C1ae.medium",
		Region:       "Quebec-CA",
		StartIn:      1700000000,
		JobSourceURI: sourceURI,
	}}, fake.Submissions())

	for _, expected := range []orchestrator.TaskState{orchestrator.StateRequested, orchestrator.StateScheduled, orchestrator.StateRunning} {
		info, err := o.GetDeploymentInfo(ctx, result.TaskUUID)
		require.NoError(t, err)
		assert.Equal(t, expected, info.Task.Status)
	}

	info, err := o.GetDeploymentInfo(ctx, result.TaskUUID)
	require.NoError(t, err)
	assert.Len(t, info.RealURLs(), 1)

	payments, err := o.GetPaymentInfo(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, result.TaskUUID, payments[0].TaskUUID)
	assert.Equal(t, 2.0, payments[0].Amount)

	require.NoError(t, o.TerminateTask(ctx, result.TaskUUID))
	info, err = o.GetDeploymentInfo(ctx, result.TaskUUID)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StateTerminated, info.Task.Status)
	assert.True(t, info.Task.Status.Finished())

	_, err = o.GetDeploymentInfo(ctx, uuid.NewString())
	assert.True(t, swanerr.IsNotFound(err))

	err = o.TerminateTask(ctx, uuid.NewString())
	assert.True(t, swanerr.IsNotFound(err))
}
