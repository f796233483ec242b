package deployclient

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/swanchain/go-swan-sdk/pkg/storage"
	"github.com/swanchain/go-swan-sdk/pkg/swanapi"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
)

const (
	DefaultDuration      = time.Hour
	DefaultPollInterval  = 15 * time.Second
	DefaultRetryInterval = 5 * time.Second
	DefaultDeployTimeout = 10 * time.Minute
	DefaultManifestKey   = "source.json"

	WaitForRunning  = "running"
	WaitForFinished = "finished"
)

// Config holds every option of the swan command line. Keys are flag names;
// environment variables are SWAN_ followed by the upper-cased key.
type Config struct {
	APIKey                    string        `json:"api-key"`
	APIURL                    string        `json:"api-url"`
	Actions                   bool          `json:"actions"`
	Bucket                    string        `json:"bucket"`
	CfgName                   string        `json:"cfg-name"`
	DeploymentFile            string        `json:"deployment-file"`
	Directory                 string        `json:"directory"`
	DryRun                    bool          `json:"dry-run"`
	Duration                  time.Duration `json:"duration"`
	LogFormat                 string        `json:"log-format"`
	LogLevel                  string        `json:"log-level"`
	ManifestKey               string        `json:"manifest-key"`
	MetricsFile               string        `json:"metrics-file"`
	OpenTelemetryCollectorURL string        `json:"otel-collector-endpoint"`
	Output                    string        `json:"output"`
	Paid                      float64       `json:"paid"`
	PollInterval              time.Duration `json:"poll-interval"`
	Prefix                    string        `json:"prefix"`
	PrintPayload              bool          `json:"print-payload"`
	Quiet                     bool          `json:"quiet"`
	Region                    string        `json:"region"`
	Replace                   bool          `json:"replace"`
	Retry                     bool          `json:"retry"`
	RetryInterval             time.Duration `json:"retry-interval"`
	SourceURI                 string        `json:"source-uri"`
	StartIn                   time.Duration `json:"start-in"`
	StorageAPIKey             string        `json:"storage-api-key"`
	StorageURL                string        `json:"storage-url"`
	SummaryFile               string        `json:"summary-file"`
	Timeout                   time.Duration `json:"timeout"`
	TxHash                    string        `json:"tx-hash"`
	Variables                 []string      `json:"var"`
	VariablesFile             string        `json:"vars"`
	Wait                      bool          `json:"wait"`
	WaitFor                   string        `json:"wait-for"`
}

func NewConfig() *Config {
	return &Config{
		APIURL:        swanapi.DefaultBaseURL,
		StorageURL:    storage.DefaultMCSURL,
		Duration:      DefaultDuration,
		LogFormat:     "text",
		LogLevel:      "info",
		ManifestKey:   DefaultManifestKey,
		Output:        "text",
		PollInterval:  DefaultPollInterval,
		Replace:       true,
		Retry:         true,
		RetryInterval: DefaultRetryInterval,
		Timeout:       DefaultDeployTimeout,
		WaitFor:       WaitForRunning,
	}
}

// BindFlags registers one flag per Config key with the defaults from NewConfig.
func BindFlags(flags *flag.FlagSet) {
	d := NewConfig()

	flags.String("api-key", "", "Swan orchestrator API key.")
	flags.String("api-url", d.APIURL, "Base URL of the Swan orchestrator API.")
	flags.Bool("actions", false, "Use GitHub Actions compatible error and warning messages.")
	flags.String("bucket", "", "Storage bucket receiving the uploaded sources and manifest.")
	flags.String("cfg-name", "", "Hardware configuration to deploy on, e.g. C1ae.small.")
	flags.String("deployment-file", "", "YAML file with deployment parameters. Templated with --var and --vars.")
	flags.String("directory", "", "Local directory to upload as the deployment source.")
	flags.Bool("dry-run", false, "Run templating and validation, but don't actually make any requests.")
	flags.Duration("duration", d.Duration, "How long the deployment should run.")
	flags.String("log-format", d.LogFormat, "Log format, one of: text, json, actions.")
	flags.String("log-level", d.LogLevel, "Log level.")
	flags.String("manifest-key", d.ManifestKey, "Name of the source manifest, published next to the prefix as <prefix>-<name>.")
	flags.String("metrics-file", "", "Write collected metrics to this node-exporter textfile on exit.")
	flags.String("otel-collector-endpoint", "", "OpenTelemetry collector endpoint, or 'stdout'.")
	flags.StringP("output", "o", d.Output, "Output format for status, one of: text, json, yaml.")
	flags.Float64("paid", 0, "Amount paid for the deployment.")
	flags.Duration("poll-interval", d.PollInterval, "Time between status queries while waiting.")
	flags.String("prefix", "", "Storage prefix the local directory is uploaded to.")
	flags.Bool("print-payload", false, "Print the deployment request to standard output.")
	flags.Bool("quiet", false, "Suppress printing of informational messages except errors.")
	flags.String("region", "", "Region to deploy in, e.g. North Carolina-US.")
	flags.Bool("replace", d.Replace, "Replace an existing manifest at --manifest-key.")
	flags.Bool("retry", d.Retry, "Retry status queries when encountering transient errors.")
	flags.Duration("retry-interval", d.RetryInterval, "Time to wait before retrying a status query.")
	flags.String("source-uri", "", "Deploy an already published source URI instead of uploading --directory.")
	flags.Duration("start-in", 0, "Delay before the deployment starts.")
	flags.String("storage-api-key", "", "Storage API key. Defaults to --api-key.")
	flags.String("storage-url", d.StorageURL, "Base URL of the storage API.")
	flags.String("summary-file", os.Getenv("GITHUB_STEP_SUMMARY"), "Append a markdown summary to this file.")
	flags.Duration("timeout", d.Timeout, "Time to wait for the whole operation.")
	flags.String("tx-hash", "", "Payment transaction hash to attach to the deployment.")
	flags.StringSlice("var", nil, "Template variable in the form KEY=VALUE. Can be specified multiple times.")
	flags.String("vars", "", "File containing template variables.")
	flags.Bool("wait", false, "Block until the deployment reaches the state given by --wait-for.")
	flags.String("wait-for", d.WaitFor, "State to wait for, one of: running, finished.")
}

func (cfg *Config) StorageKey() string {
	if len(cfg.StorageAPIKey) > 0 {
		return cfg.StorageAPIKey
	}
	return cfg.APIKey
}

// ValidateDeployment checks the options needed to prepare a deployment request.
func (cfg *Config) ValidateDeployment() error {
	switch {
	case len(cfg.APIKey) == 0 && !cfg.DryRun:
		return swanerr.Errorf(swanerr.KindConfiguration, "API key required")
	case len(cfg.CfgName) == 0:
		return swanerr.Errorf(swanerr.KindConfiguration, "hardware configuration name required")
	case len(cfg.Region) == 0:
		return swanerr.Errorf(swanerr.KindConfiguration, "region required")
	case cfg.Duration <= 0:
		return swanerr.Errorf(swanerr.KindConfiguration, "duration must be positive")
	case cfg.StartIn < 0:
		return swanerr.Errorf(swanerr.KindConfiguration, "start-in must not be negative")
	case cfg.WaitFor != WaitForRunning && cfg.WaitFor != WaitForFinished:
		return swanerr.Errorf(swanerr.KindConfiguration, "wait-for must be %q or %q, got %q", WaitForRunning, WaitForFinished, cfg.WaitFor)
	}

	if len(cfg.SourceURI) > 0 {
		return nil
	}

	return cfg.ValidateUpload()
}

// ValidateUpload checks the options needed to upload a local directory and
// publish its manifest.
func (cfg *Config) ValidateUpload() error {
	switch {
	case len(cfg.StorageKey()) == 0 && !cfg.DryRun:
		return swanerr.Errorf(swanerr.KindConfiguration, "storage API key required")
	case len(cfg.Directory) == 0:
		return swanerr.Errorf(swanerr.KindConfiguration, "either source-uri or directory required")
	case len(cfg.Bucket) == 0 || len(strings.Trim(cfg.Prefix, "/")) == 0:
		return swanerr.Errorf(swanerr.KindConfiguration, "bucket and prefix required to upload %s", cfg.Directory)
	case len(cfg.ManifestKey) == 0:
		return swanerr.Errorf(swanerr.KindConfiguration, "manifest-key required")
	}

	info, err := os.Stat(cfg.Directory)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindConfiguration, fmt.Errorf("directory: %w", err))
	}
	if !info.IsDir() {
		return swanerr.Errorf(swanerr.KindConfiguration, "%s is not a directory", cfg.Directory)
	}

	return nil
}
