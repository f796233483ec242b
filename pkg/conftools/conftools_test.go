package conftools_test

import (
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanchain/go-swan-sdk/pkg/conftools"
)

type config struct {
	APIKey  string        `json:"api-key"`
	Region  string        `json:"region"`
	Timeout time.Duration `json:"timeout"`
}

func flags() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("api-key", "", "")
	fs.String("region", "North Carolina-US", "")
	fs.Duration("timeout", time.Minute, "")
	return fs
}

func TestLoadPrecedence(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFTEST_REGION", "Quebec-CA")
	conftools.Initialize("conftest")

	fs := flags()
	require.NoError(t, fs.Parse([]string{"--api-key", "secret", "--timeout", "5s"}))

	cfg := &config{}
	require.NoError(t, conftools.Load(fs, cfg))

	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "Quebec-CA", cfg.Region)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestFormatRedactsSecrets(t *testing.T) {
	viper.Reset()
	conftools.Initialize("conftest")

	fs := flags()
	require.NoError(t, fs.Parse([]string{"--api-key", "secret"}))
	require.NoError(t, conftools.Load(fs, &config{}))

	printed := conftools.Format([]string{"api-key"})
	assert.Equal(t, []string{
		"api-key: ***REDACTED***",
		"region: North Carolina-US",
		"timeout: 1m0s",
	}, printed)
}

func TestFormatShowsUnsetSecrets(t *testing.T) {
	viper.Reset()
	conftools.Initialize("conftest")

	fs := flags()
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, conftools.Load(fs, &config{}))

	printed := conftools.Format([]string{"api-key"})
	assert.Contains(t, printed, "api-key: (unset)")
}
