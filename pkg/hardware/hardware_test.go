package hardware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swanchain/go-swan-sdk/pkg/hardware"
	"github.com/swanchain/go-swan-sdk/pkg/swanapi"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
)

const machines = `{
	"hardware": [
		{"id": 0, "name": "C1ae.small", "description": "CPU only · 2 vCPU · 2 GiB", "type": "CPU", "region": ["North Carolina-US"], "price": "0.0", "status": "available"},
		{"id": 1, "name": "C1ae.medium", "description": "CPU only · 4 vCPU · 4 GiB", "type": "CPU", "region": ["North Carolina-US", "Quebec-CA"], "price": "1.0", "status": "available"},
		{"id": 2, "name": "C1ae.small", "description": "duplicate", "type": "CPU", "region": ["EU-West"], "price": "0.0", "status": "available"}
	]
}`

func catalogResponse(data string) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		err := json.Unmarshal([]byte(data), args.Get(4))
		if err != nil {
			panic(err)
		}
	}
}

func newCatalog(t *testing.T, calls int) *hardware.Catalog {
	api := swanapi.NewMockRequester(t)
	api.On("Request", mock.Anything, http.MethodGet, swanapi.PathMachines, nil, mock.Anything).
		Run(catalogResponse(machines)).
		Return(nil).
		Times(calls)
	return hardware.NewCatalog(api)
}

func TestFetchAll(t *testing.T) {
	snapshot, err := newCatalog(t, 1).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Configs, 3)
	assert.WithinDuration(t, time.Now(), snapshot.FetchedAt, time.Minute)

	assert.Equal(t, hardware.Config{
		ID:          1,
		Name:        "C1ae.medium",
		Description: "CPU only · 4 vCPU · 4 GiB",
		Type:        "CPU",
		Regions:     []string{"North Carolina-US", "Quebec-CA"},
		Price:       "1.0",
		Status:      hardware.StatusAvailable,
	}, snapshot.Configs[1])
}

func TestFetchAllFailure(t *testing.T) {
	api := swanapi.NewMockRequester(t)
	api.On("Request", mock.Anything, http.MethodGet, swanapi.PathMachines, nil, mock.Anything).
		Return(swanerr.Errorf(swanerr.KindAuth, "401 Unauthorized"))

	snapshot, err := hardware.NewCatalog(api).FetchAll(context.Background())
	assert.Nil(t, snapshot)
	assert.Equal(t, swanerr.KindAuth, swanerr.ErrorKind(err))

	ok, err := hardware.NewCatalog(api).Verify(context.Background(), "C1ae.small", "North Carolina-US")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog(t, 5)

	for _, tc := range []struct {
		name     string
		cfg      string
		region   string
		expected bool
	}{
		{name: "config in region", cfg: "C1ae.small", region: "North Carolina-US", expected: true},
		{name: "config not in region", cfg: "C1ae.small", region: "EU-West", expected: false},
		{name: "second region", cfg: "C1ae.medium", region: "Quebec-CA", expected: true},
		{name: "unknown config", cfg: "G1ae.large", region: "North Carolina-US", expected: false},
		{name: "name match is exact", cfg: "c1ae.small", region: "North Carolina-US", expected: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := catalog.Verify(ctx, tc.cfg, tc.region)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
		})
	}
}

func TestSnapshot(t *testing.T) {
	snapshot := &hardware.Snapshot{}
	require.NoError(t, json.Unmarshal([]byte(machines), &struct {
		Hardware *[]hardware.Config `json:"hardware"`
	}{Hardware: &snapshot.Configs}))

	config, ok := snapshot.Lookup("C1ae.small")
	require.True(t, ok)
	assert.Equal(t, int64(0), config.ID)

	_, ok = snapshot.Lookup("nope")
	assert.False(t, ok)

	assert.Len(t, snapshot.InRegion(""), 3)
	assert.Len(t, snapshot.InRegion("North Carolina-US"), 2)
	assert.Len(t, snapshot.InRegion("Mars"), 0)

	empty := &hardware.Snapshot{}
	assert.False(t, empty.Verify("C1ae.small", "North Carolina-US"))
}
