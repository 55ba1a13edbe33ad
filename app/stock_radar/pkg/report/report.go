package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/pipeline"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTMLData 用于模板渲染的数据
type HTMLData struct {
	Result *model.AnalysisResult
	Stages []StageSection
}

// StageSection 单个阶段的渲染结果
type StageSection struct {
	Role string
	Body template.HTML
}

// stageOrder 报告中各阶段的展示顺序
var stageOrder = []string{
	pipeline.CollectorRole.Name,
	pipeline.AnalystRole.Name,
	pipeline.AdvisorRole.Name,
}

// Markdown 把模型输出的 markdown 转成 HTML，转换失败时原样转义
func Markdown(src string) template.HTML {
	src = strings.TrimSpace(src)
	src = strings.TrimPrefix(src, "```markdown")
	src = strings.TrimPrefix(src, "```")
	src = strings.TrimSuffix(src, "```")

	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

// Render 渲染单次分析报告
func Render(w io.Writer, res *model.AnalysisResult) error {
	data := HTMLData{Result: res}
	for _, role := range stageOrder {
		if text, ok := res.Analysis[role]; ok {
			data.Stages = append(data.Stages, StageSection{Role: role, Body: Markdown(text)})
		}
	}
	return reportTpl.Execute(w, data)
}

// WriteFile 渲染并写入文件，目录不存在时自动创建
func WriteFile(path string, res *model.AnalysisResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Render(f, res)
}

var reportTpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"text": func(v *string) string {
		if v == nil {
			return "N/A"
		}
		return *v
	},
}).Parse(htmlTpl))

const htmlTpl = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Result.Symbol }} | Stock Radar</title>
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
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 40px; padding: 20px 0; }
        h1 { font-size: 2.5rem; margin: 0 0 10px 0; }
        .date-info { color: var(--text-secondary); }
        .card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 24px;
            margin-bottom: 30px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.05);
            border: 1px solid var(--border-color);
        }
        .rec { display: flex; gap: 16px; flex-wrap: wrap; }
        .rec div { background: #eff6ff; padding: 12px 20px; border-radius: 8px; font-weight: bold; }
        table { width: 100%; border-collapse: collapse; }
        td { padding: 6px 0; border-bottom: 1px solid #f1f5f9; }
        td:first-child { color: var(--text-secondary); }
        .news a { color: var(--primary-color); text-decoration: none; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{ text .Result.Data.CompanyName }} ({{ .Result.Symbol }})</h1>
            <div class="date-info">{{ .Result.AnalysisDate }}</div>
        </header>

        <div class="card">
            <h2>Recommendation</h2>
            <div class="rec">
                <div>Action: {{ with .Result.Recommendation.Action }}{{ . }}{{ else }}N/A{{ end }}</div>
                <div>Target Price: {{ money .Result.Recommendation.TargetPrice }}</div>
                <div>Time Horizon: {{ with .Result.Recommendation.TimeHorizon }}{{ . }}{{ else }}N/A{{ end }}</div>
            </div>
        </div>

        <div class="card">
            <h2>Market Data</h2>
            <table>
                <tr><td>Current Price</td><td>{{ money .Result.Data.CurrentPrice }}</td></tr>
                <tr><td>Change</td><td>{{ money .Result.Data.PriceChange }} ({{ money .Result.Data.PriceChangePercent }}%)</td></tr>
                <tr><td>Market Cap</td><td>{{ money .Result.Data.MarketCap }}</td></tr>
                <tr><td>Sector</td><td>{{ text .Result.Data.Sector }}</td></tr>
                <tr><td>Industry</td><td>{{ text .Result.Data.Industry }}</td></tr>
                <tr><td>P/E Ratio</td><td>{{ money .Result.Data.PERatio }}</td></tr>
                <tr><td>52 Week Range</td><td>{{ money .Result.Data.FiftyTwoWeekLow }} - {{ money .Result.Data.FiftyTwoWeekHigh }}</td></tr>
            </table>
            {{ if .Result.Data.News }}
            <h3>News</h3>
            <ul class="news">
                {{ range .Result.Data.News }}
                <li><a href="{{ .Link }}" target="_blank">{{ .Title }}</a> <span class="date-info">{{ .Publisher }} {{ .PublishedDate }}</span></li>
                {{ end }}
            </ul>
            {{ end }}
        </div>

        {{ range .Stages }}
        <div class="card">
            <h2>{{ .Role }}</h2>
            {{ .Body }}
        </div>
        {{ end }}
    </div>
</body>
</html>
`
