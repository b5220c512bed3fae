package notifications

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"
)

// summaryData is what the summary templates render.
type summaryData struct {
	Title     string
	Mode      string
	RunID     string
	DryRun    bool
	Success   bool
	Message   string
	Failing   string
	Tiers     []TierSummary
	Duration  string
	Timestamp string
}

func newSummaryData(event Event) summaryData {
	d := summaryData{
		Title:     title(event),
		Mode:      event.Mode,
		RunID:     event.RunID,
		DryRun:    event.DryRun,
		Success:   event.Status == StatusSuccess,
		Message:   event.Message,
		Failing:   strings.Join(event.Failing, ", "),
		Tiers:     event.Tiers,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}
	if event.Duration > 0 {
		d.Duration = event.Duration.Round(time.Second).String()
	}
	return d
}

// summaryTemplates render an event as a plain-text and an HTML document.
var summaryTemplates = struct {
	Text *template.Template
	HTML *htmltemplate.Template
}{
	Text: template.Must(template.New("summary_text").Parse(summaryTextTemplate)),
	HTML: htmltemplate.Must(htmltemplate.New("summary_html").Parse(summaryHTMLTemplate)),
}

const summaryTextTemplate = `{{.Title}}

Mode:      {{.Mode}}{{if .DryRun}} (dry-run){{end}}
Run:       {{.RunID}}
{{if .Duration}}Duration:  {{.Duration}}
{{end}}Timestamp: {{.Timestamp}}
{{if .Tiers}}
Tiers:
{{range .Tiers}}  - {{.Name}} ({{.Policy}}): {{.State}}, {{.Healthy}} healthy, {{.Unhealthy}} unhealthy, {{.Stopped}} stopped, {{.Skipped}} skipped
{{end}}{{end}}{{if .Failing}}
Failing units: {{.Failing}}
{{end}}
---
Run 'tierup status' for the current state of every unit.
`

const summaryHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<div style="background-color: {{if .Success}}#28a745{{else}}#dc3545{{end}}; color: white; padding: 16px; border-radius: 8px 8px 0 0;">
<h1 style="margin: 0; font-size: 20px;">{{.Title}}</h1>
</div>
<div style="background-color: #f8f9fa; padding: 16px; border: 1px solid #dee2e6; border-top: none;">
<p><strong>Mode:</strong> {{.Mode}}{{if .DryRun}} (dry-run){{end}}<br>
<strong>Run:</strong> <code>{{.RunID}}</code><br>
{{if .Duration}}<strong>Duration:</strong> {{.Duration}}<br>
{{end}}<strong>Timestamp:</strong> {{.Timestamp}}</p>
{{if .Tiers}}<table style="width: 100%; border-collapse: collapse;">
<tr><th align="left">Tier</th><th align="left">State</th><th align="right">Healthy</th><th align="right">Unhealthy</th><th align="right">Stopped</th><th align="right">Skipped</th></tr>
{{range .Tiers}}<tr><td>{{.Name}}</td><td>{{.State}}</td><td align="right">{{.Healthy}}</td><td align="right">{{.Unhealthy}}</td><td align="right">{{.Stopped}}</td><td align="right">{{.Skipped}}</td></tr>
{{end}}</table>{{end}}
{{if .Failing}}<p style="background-color: #f8d7da; padding: 12px; border-radius: 4px;"><strong>Failing units:</strong> {{.Failing}}</p>{{end}}
</div>
</body>
</html>
`

// renderSummary returns the plain-text and HTML renderings of event.
func renderSummary(event Event) (text, html string, err error) {
	data := newSummaryData(event)

	var tb, hb bytes.Buffer
	if err := summaryTemplates.Text.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := summaryTemplates.HTML.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}
