package deployclient

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aymerick/raymond"

	"github.com/swanchain/go-swan-sdk/pkg/orchestrator"
)

const summaryTemplate = `## 🚀 Swan deployment

{{#if task_uuid}}* Task: {{task_uuid}}
{{/if}}* Hardware: {{cfg_name}} in {{region}}
{{#if source_uri}}* Source: {{{source_uri}}}
{{/if}}{{#if trace_id}}* Trace ID: {{trace_id}}
{{/if}}* Started at: {{started_at}}
* Finished at: {{finished_at}}
{{#each urls}}* Available at: {{{this}}}
{{/each}}{{#each metadata}}* {{key}}: {{value}}
{{/each}}
{{#if error}}❌ Failed: {{error}}{{else}}{{emoji}} Status: *{{state}}*{{/if}}

`

var summaryTpl = raymond.MustParse(summaryTemplate)

// Summary is the markdown report appended to the GitHub step summary file.
type Summary struct {
	TaskUUID   string
	CfgName    string
	Region     string
	SourceURI  string
	TraceID    string
	State      orchestrator.TaskState
	URLs       []string
	Metadata   map[string]string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func stateEmoji(state orchestrator.TaskState) string {
	switch state {
	case orchestrator.StateRunning, orchestrator.StateCompleted:
		return "✅"
	case orchestrator.StateFailed, orchestrator.StateTerminated:
		return "❌"
	case "":
		return "📨"
	default:
		return "⏳"
	}
}

func (s *Summary) Render() (string, error) {
	metadata := make([]map[string]string, 0, len(s.Metadata))
	for k, v := range s.Metadata {
		metadata = append(metadata, map[string]string{"key": k, "value": v})
	}
	sort.Slice(metadata, func(i, j int) bool {
		return metadata[i]["key"] < metadata[j]["key"]
	})

	state := string(s.State)
	if len(state) == 0 {
		state = "Submitted"
	}

	return summaryTpl.Exec(map[string]any{
		"task_uuid":   s.TaskUUID,
		"cfg_name":    s.CfgName,
		"region":      s.Region,
		"source_uri":  s.SourceURI,
		"trace_id":    s.TraceID,
		"started_at":  s.StartedAt.Local().Truncate(time.Second).Format(time.RFC3339),
		"finished_at": s.FinishedAt.Local().Truncate(time.Second).Format(time.RFC3339),
		"urls":        s.URLs,
		"metadata":    metadata,
		"error":       s.Error,
		"emoji":       stateEmoji(s.State),
		"state":       state,
	})
}

// AppendTo writes the rendered summary to the end of path. An empty path
// disables the summary.
func (s *Summary) AppendTo(path string) error {
	if len(path) == 0 {
		return nil
	}

	output, err := s.Render()
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(output)
	return err
}
