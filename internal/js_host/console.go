package js_host

import (
	"io"
	"strings"

	"github.com/grafana/sobek"
)

// InstallConsole defines a minimal global "console". Arguments are converted
// to strings and joined with spaces, one line per call.
func (h *Host) InstallConsole(stdout io.Writer, stderr io.Writer) {
	console := h.vm.NewObject()
	write := func(w io.Writer) func(call sobek.FunctionCall) sobek.Value {
		return func(call sobek.FunctionCall) sobek.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			io.WriteString(w, strings.Join(parts, " ")+"\n")
			return sobek.Undefined()
		}
	}
	console.Set("log", write(stdout))
	console.Set("info", write(stdout))
	console.Set("debug", write(stdout))
	console.Set("warn", write(stderr))
	console.Set("error", write(stderr))
	h.vm.Set("console", console)
}
