package script

import (
	"bytes"
	"text/template"
	"time"

	"github.com/cadence-media/cadence/constant"
	"github.com/samber/lo"
)

const scriptTemplate = `-- {{ .Name }}
-- Created {{ .Created }} for {{ .App }} {{ .Version }}

MinVersion = "{{ .Version }}"

-- Timeline returns the windows to play, in order.
-- Times are in milliseconds. Omit a period's duration_ms for a live stream.
function Timeline()
  return {
    {
      id = "{{ .Name }}",
      seekable = true,
      periods = {
        {
          duration_ms = 30000,
          ads = {
            { time_ms = 0, count = 1, duration_ms = 5000 },
            { postroll = true, count = 1, duration_ms = 5000 },
          },
        },
      },
    },
  }
end
`

var parsedTemplate = lo.Must(template.New("script").Parse(scriptTemplate))

// Template returns the source of a new script called name.
func Template(name string) string {
	var buf bytes.Buffer
	lo.Must0(parsedTemplate.Execute(&buf, struct {
		Name, Created, App, Version string
	}{
		Name:    name,
		Created: time.Now().Format(time.DateOnly),
		App:     constant.App,
		Version: constant.Version,
	}))
	return buf.String()
}
