// Package hardware reads the orchestrator's catalog of machine configurations
// and checks whether a configuration is offered in a region.
package hardware

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swanchain/go-swan-sdk/pkg/swanapi"
)

const StatusAvailable = "available"

// Config is one machine configuration offered by the orchestrator.
type Config struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Regions     []string `json:"region"`
	Price       string   `json:"price"`
	Status      string   `json:"status"`
}

func (c Config) ServesRegion(region string) bool {
	return slices.Contains(c.Regions, region)
}

// Snapshot is the result of one catalog fetch. It is never refreshed; fetch a
// new one to observe changes.
type Snapshot struct {
	Configs   []Config
	FetchedAt time.Time
}

// Lookup returns the first configuration named name.
func (s *Snapshot) Lookup(name string) (Config, bool) {
	for _, config := range s.Configs {
		if config.Name == name {
			return config, true
		}
	}
	return Config{}, false
}

// Verify reports whether the first configuration named name serves region.
// Unknown names are not serviceable.
func (s *Snapshot) Verify(name, region string) bool {
	config, ok := s.Lookup(name)
	if !ok {
		return false
	}
	return config.ServesRegion(region)
}

// InRegion returns every configuration serving region, or all of them if region is empty.
func (s *Snapshot) InRegion(region string) []Config {
	if len(region) == 0 {
		return append([]Config(nil), s.Configs...)
	}
	configs := make([]Config, 0)
	for _, config := range s.Configs {
		if config.ServesRegion(region) {
			configs = append(configs, config)
		}
	}
	return configs
}

type Catalog struct {
	api swanapi.Requester
	now func() time.Time
}

func NewCatalog(api swanapi.Requester) *Catalog {
	return &Catalog{
		api: api,
		now: time.Now,
	}
}

// FetchAll performs one authenticated GET of the machine list.
func (c *Catalog) FetchAll(ctx context.Context) (*Snapshot, error) {
	out := struct {
		Hardware []Config `json:"hardware"`
	}{}
	err := c.api.Request(ctx, http.MethodGet, swanapi.PathMachines, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch hardware configurations: %w", err)
	}

	log.Debugf("Fetched %d hardware configurations", len(out.Hardware))

	return &Snapshot{
		Configs:   out.Hardware,
		FetchedAt: c.now(),
	}, nil
}

// Verify fetches a fresh snapshot on every call.
func (c *Catalog) Verify(ctx context.Context, name, region string) (bool, error) {
	snapshot, err := c.FetchAll(ctx)
	if err != nil {
		return false, err
	}
	return snapshot.Verify(name, region), nil
}
