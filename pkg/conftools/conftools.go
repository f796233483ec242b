package conftools

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const redacted = "***REDACTED***"

func jsonTags(dc *mapstructure.DecoderConfig) {
	dc.TagName = "json"
	dc.ErrorUnused = true
}

// Initialize points viper at `<name>.yaml` in the working directory or
// $HOME/.config/<name>, and at environment variables prefixed with NAME_.
func Initialize(name string) {
	viper.SetEnvPrefix(strings.ToUpper(name))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	viper.SetConfigName(name)
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join("$HOME", ".config", name))
}

// Load decodes flags, environment and config file into cfg, in that order of precedence.
// Unset flags contribute their defaults.
func Load(flags *flag.FlagSet, cfg any) error {
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read %s: %w", viper.ConfigFileUsed(), err)
	}

	if err := viper.BindPFlags(flags); err != nil {
		return err
	}

	return viper.Unmarshal(cfg, jsonTags)
}

// Format lists every known key with its value, sorted by key.
// Values of secret keys are redacted unless empty.
func Format(secretKeys []string) []string {
	keys := viper.AllKeys()
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		value := viper.Get(key)
		if slices.Contains(secretKeys, key) {
			if len(viper.GetString(key)) == 0 {
				value = "(unset)"
			} else {
				value = redacted
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %v", key, value))
	}
	return lines
}
