package deployclient

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ghodss/yaml"

	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// WriteOutput renders v in the requested format. Text output is delegated to
// text, which receives the writer.
func WriteOutput(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case OutputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return swanerr.ErrorWrap(swanerr.KindInternal, err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return swanerr.ErrorWrap(swanerr.KindInternal, err)
		}
		_, err = w.Write(data)
		return err
	case OutputText, "":
		return text(w)
	default:
		return swanerr.Errorf(swanerr.KindConfiguration, "output format %q is not recognized", format)
	}
}
