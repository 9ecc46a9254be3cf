package main

import (
	"fmt"
	"io"

	"idmltranslator/internal/form"
	"idmltranslator/internal/models"
)

var _ form.View = (*terminalView)(nil)

// terminalView renders controller output as log lines. Progress and
// notifications go to errOut, download links to out so they can be piped.
type terminalView struct {
	out    io.Writer
	errOut io.Writer
	server string

	lastPercent int
}

func newTerminalView(out, errOut io.Writer, server string) *terminalView {
	return &terminalView{out: out, errOut: errOut, server: server, lastPercent: -1}
}

func (v *terminalView) ShowFilePreview(name, size string) {
	fmt.Fprintf(v.errOut, "[INFO] %s (%s)\n", name, size)
}

func (v *terminalView) ShowDropzone() {}
func (v *terminalView) SetSubmitEnabled(bool) {}
func (v *terminalView) SetSubmitLoading(bool) {}
func (v *terminalView) HideDownloads() {}
func (v *terminalView) HideMessage() {}
func (v *terminalView) ShowProgress() { v.lastPercent = -1 }
func (v *terminalView) HideProgress() {}

func (v *terminalView) UpdateProgress(stage models.ProgressStage) {
	if stage.Percent == v.lastPercent {
		return
	}
	v.lastPercent = stage.Percent
	fmt.Fprintf(v.errOut, "[%3d%%] %s\n", stage.Percent, stage.Label)
}

func (v *terminalView) ShowDownloads(links []models.DownloadLink) {
	for _, l := range links {
		fmt.Fprintf(v.out, "%s: %s%s\n", l.Label, v.server, l.Href)
	}
}

func (v *terminalView) ShowMessage(text string, severity models.Severity) {
	prefix := "[ERROR]"
	if severity == models.SeveritySuccess {
		prefix = "[OK]"
	}
	fmt.Fprintf(v.errOut, "%s %s\n", prefix, text)
}

func (v *terminalView) saved(path string) {
	fmt.Fprintf(v.errOut, "[INFO] saved %s\n", path)
}
