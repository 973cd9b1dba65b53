package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/hamed0406/uptimeguard/internal/alert"
)

const timeLayout = "2006-01-02 15:04:05 MST"

var subjects = map[alert.Kind]string{
	alert.Down:      "[DOWN] %s is not responding",
	alert.Recovered: "[RECOVERED] %s is back up",
	alert.Slow:      "[SLOW] %s is responding slowly",
}

var bodyTmpl = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8" /><title>{{.Headline}}</title></head>
<body style="margin:0;background:#f6f7f9;font-family:-apple-system,'Segoe UI',Roboto,Arial,sans-serif;color:#161823">
  <div style="max-width:600px;margin:24px auto;padding:0 16px">
    <div style="background:#fff;border-radius:12px;overflow:hidden">
      <div style="padding:16px 20px;background:{{.Color}};color:#fff;font-weight:600">{{.Headline}}</div>
      <div style="padding:20px;font-size:14px;line-height:1.7">
        <p>{{.Lead}}</p>
        <div><b>Target:</b> {{.Name}}</div>
        <div><b>Address:</b> {{.Address}}</div>
        <div><b>Time:</b> {{.At}}</div>
        {{- if .ResponseMs}}
        <div><b>Response time:</b> {{.ResponseMs}}ms</div>
        {{- end}}
        {{- if .ThresholdMs}}
        <div><b>Threshold:</b> {{.ThresholdMs}}ms</div>
        {{- end}}
        {{- if .Error}}
        <div><b>Error:</b> {{.Error}}</div>
        {{- end}}
      </div>
      <div style="padding:14px 20px;border-top:1px solid #f0f2f5;color:#666;font-size:12px">
        Sent automatically by UptimeGuard. Adjust alert settings in your dashboard.
      </div>
    </div>
  </div>
</body>
</html>`))

type bodyData struct {
	Headline    string
	Color       template.CSS
	Lead        string
	Name        string
	Address     string
	At          string
	ResponseMs  int
	ThresholdMs int
	Error       string
}

// Render builds the subject and HTML body for a.
func Render(a Alert, loc *time.Location) (string, string, error) {
	format, ok := subjects[a.Kind]
	if !ok {
		return "", "", fmt.Errorf("no template for alert kind %q", a.Kind)
	}
	name := displayName(a)
	d := bodyData{
		Name:    name,
		Address: a.Target.Address,
		At:      a.At.In(loc).Format(timeLayout),
	}
	switch a.Kind {
	case alert.Down:
		d.Headline, d.Color = "Target down", "#d93025"
		d.Lead = "Your target failed its latest check."
		d.Error = a.Result.ErrorMessage
	case alert.Recovered:
		d.Headline, d.Color = "Target recovered", "#188038"
		d.Lead = "Your target is responding again."
		if a.Result.ResponseTimeMs != nil {
			d.ResponseMs = *a.Result.ResponseTimeMs
		}
	case alert.Slow:
		d.Headline, d.Color = "Slow response", "#e37400"
		d.Lead = "Your target is up but slower than its configured threshold."
		if a.Result.ResponseTimeMs != nil {
			d.ResponseMs = *a.Result.ResponseTimeMs
		}
		d.ThresholdMs = a.ThresholdMs
	}
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, d); err != nil {
		return "", "", err
	}
	return fmt.Sprintf(format, name), buf.String(), nil
}

// OpsLine is the short form of a sent to the ops mirror.
func OpsLine(a Alert, loc *time.Location) (string, string) {
	title := fmt.Sprintf("%s: %s", a.Kind, displayName(a))
	text := a.Target.Address + " at " + a.At.In(loc).Format(timeLayout)
	if a.Result.ErrorMessage != "" {
		text += "\n" + a.Result.ErrorMessage
	}
	return title, text
}

func displayName(a Alert) string {
	if a.Target.Name != "" {
		return a.Target.Name
	}
	return a.Target.Address
}
