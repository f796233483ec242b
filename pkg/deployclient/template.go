package deployclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	"github.com/ghodss/yaml"
	yamlv2 "gopkg.in/yaml.v2"

	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
)

type TemplateVariables map[string]any

// DeploymentFile holds the deployment parameters that may be kept in version
// control next to the sources instead of being passed as flags.
type DeploymentFile struct {
	CfgName   string   `json:"cfg_name"`
	Region    string   `json:"region"`
	Duration  string   `json:"duration"`
	StartIn   string   `json:"start_in"`
	Paid      *float64 `json:"paid"`
	TxHash    string   `json:"tx_hash"`
	SourceURI string   `json:"job_source_uri"`
	Directory string   `json:"directory"`
	Bucket    string   `json:"bucket"`
	Prefix    string   `json:"prefix"`
}

func MultiDocumentFileAsJSON(path string, ctx TemplateVariables) ([]json.RawMessage, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: open file: %s", path, err)
	}

	templated, err := templatedFile(file, ctx)
	if err != nil {
		errMsg := strings.ReplaceAll(err.Error(), "\n", ": ")
		return nil, fmt.Errorf("%s: %s", path, errMsg)
	}

	var content any
	messages := make([]json.RawMessage, 0)

	decoder := yamlv2.NewDecoder(bytes.NewReader(templated))
	for {
		err = decoder.Decode(&content)
		if err == io.EOF {
			err = nil
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %s", path, err)
		}

		rawdocument, err := yamlv2.Marshal(content)
		if err != nil {
			return nil, err
		}

		data, err := yaml.YAMLToJSON(rawdocument)
		if err != nil {
			errMsg := strings.ReplaceAll(err.Error(), "\n", ": ")
			return nil, fmt.Errorf("%s: %s", path, errMsg)
		}

		messages = append(messages, data)
	}

	return messages, err
}

// LoadDeploymentFile templates and parses a deployment file. The file must
// contain exactly one YAML document.
func LoadDeploymentFile(path string, ctx TemplateVariables) (*DeploymentFile, error) {
	documents, err := MultiDocumentFileAsJSON(path, ctx)
	if err != nil {
		return nil, swanerr.ErrorWrap(swanerr.KindConfiguration, err)
	}
	if len(documents) != 1 {
		return nil, swanerr.Errorf(swanerr.KindConfiguration, "%s: expected exactly one document, found %d", path, len(documents))
	}

	file := &DeploymentFile{}
	decoder := json.NewDecoder(bytes.NewReader(documents[0]))
	decoder.DisallowUnknownFields()
	err = decoder.Decode(file)
	if err != nil {
		return nil, swanerr.Errorf(swanerr.KindConfiguration, "%s: %w", path, err)
	}

	return file, nil
}

// Apply copies the file's values into cfg wherever the command line left
// the option at its default.
func (f *DeploymentFile) Apply(cfg *Config) error {
	defaults := NewConfig()

	setString := func(dst *string, value, fallback string) {
		if len(value) > 0 && *dst == fallback {
			*dst = value
		}
	}
	setDuration := func(name string, dst *time.Duration, value string, fallback time.Duration) error {
		if len(value) == 0 || *dst != fallback {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return swanerr.Errorf(swanerr.KindConfiguration, "deployment file: %s: %w", name, err)
		}
		*dst = d
		return nil
	}

	setString(&cfg.CfgName, f.CfgName, defaults.CfgName)
	setString(&cfg.Region, f.Region, defaults.Region)
	setString(&cfg.TxHash, f.TxHash, defaults.TxHash)
	setString(&cfg.SourceURI, f.SourceURI, defaults.SourceURI)
	setString(&cfg.Directory, f.Directory, defaults.Directory)
	setString(&cfg.Bucket, f.Bucket, defaults.Bucket)
	setString(&cfg.Prefix, f.Prefix, defaults.Prefix)

	if f.Paid != nil && cfg.Paid == defaults.Paid {
		cfg.Paid = *f.Paid
	}

	err := setDuration("duration", &cfg.Duration, f.Duration, defaults.Duration)
	if err != nil {
		return err
	}
	return setDuration("start_in", &cfg.StartIn, f.StartIn, defaults.StartIn)
}

func templatedFile(data []byte, ctx TemplateVariables) ([]byte, error) {
	if len(ctx) == 0 {
		return data, nil
	}
	template, err := raymond.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse template file: %s", err)
	}

	output, err := template.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute template: %s", err)
	}

	return []byte(output), nil
}

func templateVariablesFromFile(path string) (TemplateVariables, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: open file: %s", path, err)
	}

	vars := TemplateVariables{}
	err = yaml.Unmarshal(file, &vars)

	return vars, err
}

func templateVariablesFromSlice(vars []string) TemplateVariables {
	tv := TemplateVariables{}
	for _, keyval := range vars {
		tokens := strings.SplitN(keyval, "=", 2)
		switch len(tokens) {
		case 2: // KEY=VAL
			tv[tokens[0]] = tokens[1]
		case 1: // KEY
			tv[tokens[0]] = true
		default:
			continue
		}
	}

	return tv
}

func detectErrorLine(e string) (int, error) {
	var line int
	_, err := fmt.Sscanf(e, "yaml: line %d:", &line)
	return line, err
}

func errorContext(content string, line int) []string {
	ctx := make([]string, 0)
	lines := strings.Split(content, "\n")
	format := "%03d: %s"
	for l := range lines {
		ctx = append(ctx, fmt.Sprintf(format, l+1, lines[l]))
		if l+1 == line {
			helper := "     " + strings.Repeat("^", len(lines[l])) + " <--- error near this line"
			ctx = append(ctx, helper)
		}
	}
	return ctx
}
