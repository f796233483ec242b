package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/swanchain/go-swan-sdk/pkg/conftools"
	"github.com/swanchain/go-swan-sdk/pkg/deployclient"
	"github.com/swanchain/go-swan-sdk/pkg/logging"
	"github.com/swanchain/go-swan-sdk/pkg/metrics"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
	"github.com/swanchain/go-swan-sdk/pkg/version"
)

// Options that must never be printed.
var secretKeys = []string{"api-key", "storage-api-key"}

type app struct {
	cfg            *deployclient.Config
	cancel         context.CancelFunc
	tracerProvider *trace.TracerProvider
}

func main() {
	a := &app{cfg: deployclient.NewConfig()}
	err := a.newRootCmd().Execute()
	a.shutdown()

	kind := swanerr.ErrorKind(err)
	if err != nil {
		metrics.OperationError(kind.String())
	}
	a.writeMetrics()

	if err == nil {
		return
	}
	log.Errorf("fatal: %s", err)
	os.Exit(int(kind))
}

func (a *app) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swan",
		Short:         "swan uploads sources and deploys them to Swan computing providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	deployclient.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		a.newLoginCmd(),
		a.newHardwareCmd(),
		a.newUploadCmd(),
		a.newDeployCmd(),
		a.newStatusCmd(),
		a.newPaymentsCmd(),
		a.newTerminateCmd(),
		a.newVersionCmd(),
	)

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	conftools.Initialize("swan")
	err := conftools.Load(cmd.Root().PersistentFlags(), a.cfg)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindConfiguration, fmt.Errorf("load configuration: %w", err))
	}

	level := a.cfg.LogLevel
	if a.cfg.Quiet {
		level = log.ErrorLevel.String()
	}
	format := a.cfg.LogFormat
	if a.cfg.Actions {
		format = "actions"
	}
	err = logging.Setup(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindConfiguration, err)
	}

	log.Infof("Swan SDK %s", version.Version())
	ts, err := version.BuildTime()
	if err == nil {
		log.Infof("This version was built %s", ts.Local())
	}
	for _, line := range conftools.Format(secretKeys) {
		log.Debug(line)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
	a.cancel = cancel

	a.tracerProvider, err = telemetry.New(ctx, "swan", a.cfg.OpenTelemetryCollectorURL)
	if err != nil {
		log.Warnf("Tracing disabled: %s", err)
	}

	cmd.SetContext(ctx)
	return nil
}

func (a *app) shutdown() {
	if a.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.tracerProvider.Shutdown(ctx)
		if err != nil {
			log.Warnf("Shut down tracing: %s", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *app) writeMetrics() {
	if len(a.cfg.MetricsFile) == 0 {
		return
	}
	err := metrics.WriteTextfile(a.cfg.MetricsFile)
	if err != nil {
		log.Warnf("Write metrics to %s: %s", a.cfg.MetricsFile, err)
	}
}
