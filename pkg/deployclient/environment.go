package deployclient

import (
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/swanchain/go-swan-sdk/pkg/version"
)

const (
	MetadataClientVersion  = "client-version"
	MetadataWorkflowRunURL = "github-workflow-run-url"
	MetadataChangeCause    = "change-cause"
)

// https://docs.github.com/en/actions/reference/environment-variables#default-environment-variables
func BuildEnvironmentMetadata() map[string]string {
	m := make(map[string]string)

	addAll := func(envVar ...string) {
		for _, v := range envVar {
			value, found := os.LookupEnv(v)
			if found {
				m[strings.ReplaceAll(strings.ToLower(v), "_", "-")] = value
			}
		}
	}

	addAll(
		// GitHub
		"GITHUB_ACTOR",
		"GITHUB_SHA",

		// Jenkins
		"BUILD_URL",
		"GIT_COMMIT",
	)

	m[MetadataClientVersion] = version.Version()
	runurl := githubWorkflowRunURL()
	if len(runurl) > 0 {
		m[MetadataWorkflowRunURL] = runurl
	}

	cause := changeCause(m)
	if len(cause) > 0 {
		m[MetadataChangeCause] = cause
	}

	return m
}

func metadataAttributes(metadata map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(metadata))
	for k, v := range metadata {
		attrs = append(attrs, attribute.String("swan.ci."+k, v))
	}
	return attrs
}

func changeCause(metadata map[string]string) string {
	var commit, url string
	var ok bool

	for _, key := range []string{"github-sha", "git-commit"} {
		commit, ok = metadata[key]
		if ok {
			break
		}
	}

	for _, key := range []string{MetadataWorkflowRunURL, "build-url"} {
		url, ok = metadata[key]
		if ok {
			break
		}
	}

	if len(commit) == 0 || len(url) == 0 {
		return ""
	}

	return fmt.Sprintf("swan deploy: commit %s: %s", commit, url)
}

func githubWorkflowRunURL() string {
	server, ok := os.LookupEnv("GITHUB_SERVER_URL")
	if !ok {
		return ""
	}
	repo, ok := os.LookupEnv("GITHUB_REPOSITORY")
	if !ok {
		return ""
	}
	runid, ok := os.LookupEnv("GITHUB_RUN_ID")
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, runid)
}
