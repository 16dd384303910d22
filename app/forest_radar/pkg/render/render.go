// Package render 把清单文档渲染为单个自包含的 HTML 文件。
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
)

// 状态标记，颜色之外再用符号区分
var statusCues = map[model.HealthStatus]struct {
	class  string
	symbol string
}{
	model.Healthy:  {"status-healthy", "✔"},
	model.Warning:  {"status-warning", "▲"},
	model.Critical: {"status-critical", "✖"},
	model.Unknown:  {"status-unknown", "?"},
}

// Renderer HTML 渲染器
type Renderer struct {
	tpl *template.Template
}

// New 解析内置模板
func New() (*Renderer, error) {
	t, err := template.New("report").Parse(htmlTpl)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tpl: t}, nil
}

type cellView struct {
	Value  string
	Class  string
	Symbol string
}

type sectionView struct {
	Anchor  string
	Ordinal int
	Name    string
	State   string
	Failed  bool
	Partial bool
	Note    string
	Count   string
	Columns []string
	Rows    [][]cellView
}

type pageData struct {
	Title       string
	Forest      string
	RunID       string
	GeneratedAt string
	Elapsed     string
	Records     string
	Failed      int
	Summary     model.StatusCounts
	Sections    []sectionView
}

func newCell(c model.Cell) cellView {
	v := cellView{Value: c.Value}
	if c.Classified {
		cue := statusCues[c.Status]
		v.Class, v.Symbol = cue.class, cue.symbol
	}
	return v
}

func newSection(s model.Section) sectionView {
	v := sectionView{
		Anchor:  fmt.Sprintf("section-%d", s.Ordinal),
		Ordinal: s.Ordinal,
		Name:    s.Name,
		State:   s.State.String(),
		Failed:  s.State == model.StateFailed,
		Partial: s.State == model.StatePartial,
		Note:    s.Note,
		Count:   humanize.Comma(int64(len(s.Records))),
	}
	if v.Failed {
		return v
	}
	t := s.Table()
	v.Columns = t.Columns
	for _, row := range t.Rows {
		cells := make([]cellView, 0, len(row))
		for _, c := range row {
			cells = append(cells, newCell(c))
		}
		v.Rows = append(v.Rows, cells)
	}
	return v
}

func newPage(doc *model.ReportDocument) pageData {
	p := pageData{
		Title:       doc.Meta.Title,
		Forest:      doc.Meta.Forest,
		RunID:       doc.Meta.RunID,
		GeneratedAt: doc.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		Elapsed:     doc.Meta.Elapsed.String(),
		Records:     humanize.Comma(int64(doc.RecordCount())),
		Failed:      doc.FailedCount(),
		Summary:     doc.Summary(),
	}
	if p.Title == "" {
		p.Title = "Active Directory Inventory"
	}
	for _, s := range doc.Sections {
		p.Sections = append(p.Sections, newSection(s))
	}
	return p
}

// Render 渲染到 w
func (r *Renderer) Render(w io.Writer, doc *model.ReportDocument) error {
	return r.tpl.Execute(w, newPage(doc))
}

// WriteFile 写入 {dir}/{baseName}_{Timestamp}.html，返回文件路径
func (r *Renderer) WriteFile(dir, baseName string, doc *model.ReportDocument) (string, error) {
	// 先渲染到内存，模板出错时不留下半个文件
	var buf bytes.Buffer
	if err := r.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.html", baseName, doc.Meta.Timestamp))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	logger.Log.Infof("HTML 报告已生成: %s", path)
	return path, nil
}

const htmlTpl = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Title }}{{ if .Forest }} | {{ .Forest }}{{ end }}</title>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.5;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        header { margin-bottom: 24px; }
        h1 { font-size: 2rem; margin: 0 0 8px 0; }
        .meta { color: var(--text-secondary); font-size: 0.9rem; }
        .summary { display: flex; gap: 12px; margin: 16px 0; flex-wrap: wrap; }
        .summary span { padding: 4px 12px; border-radius: 16px; font-weight: bold; }
        nav.toc { background: var(--card-bg); border: 1px solid var(--border-color); border-radius: 8px; padding: 12px 20px; margin-bottom: 24px; }
        nav.toc ol { margin: 0; padding-left: 20px; columns: 2; }
        nav.toc a { color: var(--primary-color); text-decoration: none; }
        nav.toc .state { color: var(--text-secondary); font-size: 0.8em; }
        .toolbar { margin-bottom: 16px; }
        .toolbar button { background: var(--primary-color); color: #fff; border: 0; border-radius: 6px; padding: 6px 14px; cursor: pointer; }
        details.section { background: var(--card-bg); border: 1px solid var(--border-color); border-radius: 8px; margin-bottom: 16px; }
        details.section > summary { padding: 12px 16px; font-size: 1.2rem; font-weight: bold; cursor: pointer; }
        details.section > summary .count { color: var(--text-secondary); font-size: 0.85rem; font-weight: normal; }
        .section-body { padding: 0 16px 16px 16px; overflow-x: auto; }
        table { border-collapse: collapse; width: 100%; font-size: 0.85rem; }
        th, td { border: 1px solid var(--border-color); padding: 4px 8px; text-align: left; vertical-align: top; }
        th { background: #f1f5f9; }
        .notice { padding: 10px 14px; border-radius: 6px; }
        .notice-failed { background: #fef2f2; border-left: 4px solid #ef4444; color: #991b1b; }
        .notice-empty { background: #f8fafc; border-left: 4px solid #cbd5e1; color: var(--text-secondary); }
        .notice-partial { background: #fffbeb; border-left: 4px solid #f59e0b; color: #92400e; margin-bottom: 10px; }
        .status-healthy { background: #dcfce7; color: #166534; }
        .status-warning { background: #fef9c3; color: #854d0e; }
        .status-critical { background: #fee2e2; color: #991b1b; }
        .status-unknown { background: #e2e8f0; color: #334155; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{ .Title }}</h1>
            <div class="meta">
                {{ if .Forest }}Forest {{ .Forest }} • {{ end }}Generated {{ .GeneratedAt }} • {{ .Records }} records • {{ len .Sections }} sections, {{ .Failed }} failed • Run {{ .RunID }} ({{ .Elapsed }})
            </div>
            <div class="summary">
                <span class="status-healthy">✔ Healthy {{ .Summary.Healthy }}</span>
                <span class="status-warning">▲ Warning {{ .Summary.Warning }}</span>
                <span class="status-critical">✖ Critical {{ .Summary.Critical }}</span>
                <span class="status-unknown">? Unknown {{ .Summary.Unknown }}</span>
            </div>
        </header>

        <nav class="toc">
            <ol>
                {{ range .Sections }}
                <li><a href="#{{ .Anchor }}">{{ .Name }}</a> <span class="state">({{ .State }})</span></li>
                {{ end }}
            </ol>
        </nav>

        <div class="toolbar">
            <button type="button" id="toggle-all" data-expanded="true" onclick="toggleAll(this)">Collapse all</button>
        </div>

        {{ range .Sections }}
        <details class="section state-{{ .State }}" id="{{ .Anchor }}" open>
            <summary>{{ .Ordinal }}. {{ .Name }} <span class="count">{{ .Count }} records</span></summary>
            <div class="section-body">
                {{ if .Failed }}
                <div class="notice notice-failed">✖ This section could not be collected: {{ .Note }}</div>
                {{ else }}
                {{ if .Partial }}
                <div class="notice notice-partial">▲ {{ .Note }}</div>
                {{ else if not .Rows }}
                <div class="notice notice-empty">{{ .Note }}</div>
                {{ end }}
                {{ if .Rows }}
                <table>
                    <thead>
                        <tr>{{ range .Columns }}<th>{{ . }}</th>{{ end }}</tr>
                    </thead>
                    <tbody>
                        {{ range .Rows }}
                        <tr>{{ range . }}<td{{ if .Class }} class="{{ .Class }}"{{ end }}>{{ if .Symbol }}{{ .Symbol }} {{ end }}{{ .Value }}</td>{{ end }}</tr>
                        {{ end }}
                    </tbody>
                </table>
                {{ end }}
                {{ end }}
            </div>
        </details>
        {{ end }}
    </div>

    <script>
        function toggleAll(btn) {
            const expand = btn.dataset.expanded !== 'true';
            document.querySelectorAll('details.section').forEach(function (el) {
                el.open = expand;
            });
            btn.dataset.expanded = expand ? 'true' : 'false';
            btn.textContent = expand ? 'Collapse all' : 'Expand all';
        }
    </script>
</body>
</html>
`
