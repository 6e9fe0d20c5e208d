// Package report renders a bot run's history as HTML and plain text.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/ibeckermayer/clap4me/internal/store"
	"github.com/ibeckermayer/clap4me/internal/types"
)

// Builder creates run reports
type Builder struct {
	template *template.Template
}

// New creates a new report builder
func New() (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Builder{template: tmpl}, nil
}

// Report is a rendered session report.
type Report struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	CreatedAt time.Time
}

// ReportData is the template data structure
type ReportData struct {
	Title     string
	Date      string
	Duration  string
	Stats     types.SessionStats
	Articles  []ArticleData
	Generated string
}

// ArticleData represents one engagement row in the template
type ArticleData struct {
	URL       string
	Tag       string
	Claps     int
	Followed  bool
	Commented bool
	Outcome   string
	Error     string
}

// Build renders the report for one session.
func (b *Builder) Build(rep *store.SessionReport) (*Report, error) {
	if rep == nil {
		return nil, fmt.Errorf("no session to report")
	}

	now := time.Now()
	st := rep.Stats
	data := ReportData{
		Title:     "clap4me run report",
		Date:      st.StartedAt.Local().Format("Monday, January 2 15:04"),
		Stats:     st,
		Articles:  make([]ArticleData, len(rep.Engagements)),
		Generated: now.Format(time.RFC1123),
	}
	if !st.FinishedAt.IsZero() {
		data.Duration = st.FinishedAt.Sub(st.StartedAt).Round(time.Second).String()
	} else {
		data.Duration = "unfinished"
	}

	for i, e := range rep.Engagements {
		data.Articles[i] = ArticleData{
			URL:       e.URL,
			Tag:       e.Tag,
			Claps:     e.Claps,
			Followed:  e.Followed,
			Commented: e.Commented,
			Outcome:   string(e.Outcome),
			Error:     truncate(e.Error, 200),
		}
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Report{
		Subject:   fmt.Sprintf("clap4me - %d articles, %d clapped, %s", st.Processed, st.Clapped, st.StartedAt.Local().Format("Jan 2")),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		CreatedAt: now,
	}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func buildPlainText(data ReportData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n%s (%s)\n\n", data.Title, data.Date, data.Duration)
	fmt.Fprintf(&buf, "Processed %d · clapped %d · followed %d · commented %d · failed %d\n\n",
		data.Stats.Processed, data.Stats.Clapped, data.Stats.Followed, data.Stats.Commented, data.Stats.Failed)

	for i, a := range data.Articles {
		fmt.Fprintf(&buf, "%d. [%s] %s\n", i+1, a.Outcome, a.URL)
		fmt.Fprintf(&buf, "   claps: %d, followed: %t, commented: %t\n", a.Claps, a.Followed, a.Commented)
		if a.Error != "" {
			fmt.Fprintf(&buf, "   error: %s\n", a.Error)
		}
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 760px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #1a8917; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .stats { display: flex; gap: 16px; margin-bottom: 20px; }
        .stat { background: #eef7ee; border-radius: 6px; padding: 8px 12px; }
        table { width: 100%; border-collapse: collapse; font-size: 14px; }
        th, td { text-align: left; padding: 8px 4px; border-bottom: 1px solid #eee; }
        .done { color: #1a8917; }
        .skipped { color: #b58900; }
        .failed { color: #dc322f; }
        .error { color: #999; font-size: 12px; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}} · {{.Duration}}</div>

        <div class="stats">
            <div class="stat">{{.Stats.Processed}} processed</div>
            <div class="stat">{{.Stats.Clapped}} clapped</div>
            <div class="stat">{{.Stats.Followed}} followed</div>
            <div class="stat">{{.Stats.Commented}} commented</div>
            <div class="stat">{{.Stats.Failed}} failed</div>
        </div>

        <table>
            <tr><th>Article</th><th>Tag</th><th>Claps</th><th>Follow</th><th>Comment</th><th>Outcome</th></tr>
            {{range .Articles}}
            <tr>
                <td><a href="{{.URL}}">{{.URL}}</a>{{if .Error}}<div class="error">{{.Error}}</div>{{end}}</td>
                <td>{{.Tag}}</td>
                <td>{{.Claps}}</td>
                <td>{{if .Followed}}yes{{end}}</td>
                <td>{{if .Commented}}yes{{end}}</td>
                <td class="{{.Outcome}}">{{.Outcome}}</td>
            </tr>
            {{end}}
        </table>

        <div class="footer">
            Generated {{.Generated}} by clap4me
        </div>
    </div>
</body>
</html>`
