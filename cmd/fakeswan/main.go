package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/swanchain/go-swan-sdk/pkg/conftools"
	"github.com/swanchain/go-swan-sdk/pkg/fakeswan"
	"github.com/swanchain/go-swan-sdk/pkg/logging"
	"github.com/swanchain/go-swan-sdk/pkg/metrics"
	"github.com/swanchain/go-swan-sdk/pkg/version"
)

type Config struct {
	APIKey        string        `json:"api-key"`
	Buckets       []string      `json:"bucket"`
	GatewayURL    string        `json:"gateway-url"`
	ListenAddress string        `json:"listen-address"`
	LogFormat     string        `json:"log-format"`
	LogLevel      string        `json:"log-level"`
	MetricsPath   string        `json:"metrics-path"`
	Progression   []string      `json:"progression"`
	TokenTTL      time.Duration `json:"token-ttl"`
}

var maskedConfig = []string{"api-key"}

func bindFlags(flags *flag.FlagSet) {
	flags.String("api-key", fakeswan.DefaultAPIKey, "API key accepted by both login endpoints.")
	flags.StringSlice("bucket", []string{"default"}, "Storage bucket to create at startup. Can be specified multiple times.")
	flags.String("gateway-url", "", "Public base URL of the content gateway. Defaults to http://<listen-address>.")
	flags.String("listen-address", "127.0.0.1:8080", "IP:PORT to serve the fake APIs on.")
	flags.String("log-format", "text", "Log format, one of: text, json.")
	flags.String("log-level", "info", "Log level.")
	flags.String("metrics-path", "/metrics", "HTTP path serving Prometheus metrics.")
	flags.StringSlice("progression", fakeswan.DefaultProgression, "Task states reported by successive status queries.")
	flags.Duration("token-ttl", fakeswan.DefaultTokenTTL, "Lifetime of issued session tokens.")
}

func run() error {
	flags := flag.NewFlagSet("fakeswan", flag.ExitOnError)
	bindFlags(flags)
	err := flags.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	cfg := &Config{}
	conftools.Initialize("fakeswan")
	err = conftools.Load(flags, cfg)
	if err != nil {
		return err
	}

	err = logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	log.Infof("fakeswan %s", version.Version())
	for _, line := range conftools.Format(maskedConfig) {
		log.Info(line)
	}

	fake := fakeswan.New(
		fakeswan.WithAPIKey(cfg.APIKey),
		fakeswan.WithTokenTTL(cfg.TokenTTL),
		fakeswan.WithProgression(cfg.Progression...),
	)
	gatewayURL := cfg.GatewayURL
	if len(gatewayURL) == 0 {
		gatewayURL = "http://" + cfg.ListenAddress
	}
	fake.SetGatewayURL(gatewayURL)
	for _, bucket := range cfg.Buckets {
		uid := fake.AddBucket(bucket)
		log.Infof("Created bucket %q with uid %s", bucket, uid)
	}

	router := chi.NewRouter()
	router.Handle(cfg.MetricsPath, metrics.Handler())
	router.Mount("/", fake.Router())

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	log.Infof("Ready to accept connections on %s", cfg.ListenAddress)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals

	log.Infof("Received signal %s (%d), exiting...", sig, sig)

	return server.Close()
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		os.Exit(1)
	}
}
