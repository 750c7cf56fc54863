package report

// htmlTemplate is the main HTML template for the report.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Load Test Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg-secondary: #f8fafc;
            --bg-card: #ffffff;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }
        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }
        .card {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 1.5rem 2rem;
            margin-bottom: 1.5rem;
            box-shadow: var(--shadow);
        }
        .header { display: flex; justify-content: space-between; align-items: center; flex-wrap: wrap; gap: 1rem; }
        .header h1 { font-size: 1.75rem; font-weight: 700; }
        .subtitle { color: var(--text-secondary); }
        .badge { padding: 0.5rem 1.25rem; border-radius: 9999px; font-weight: 600; color: #fff; }
        .badge.passed { background: var(--accent-success); }
        .badge.failed { background: var(--accent-error); }
        .badge.interrupted { background: var(--accent-warning); }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
        .stat-label { color: var(--text-secondary); font-size: 0.85rem; text-transform: uppercase; letter-spacing: 0.05em; }
        .stat-value { font-size: 1.5rem; font-weight: 700; }
        h2 { font-size: 1.2rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: right; padding: 0.5rem 0.75rem; border-bottom: 1px solid var(--border-color); }
        th:first-child, td:first-child { text-align: left; }
        th { color: var(--text-secondary); font-weight: 600; font-size: 0.85rem; }
        .pass { color: var(--accent-success); font-weight: 700; }
        .fail { color: var(--accent-error); font-weight: 700; }
        .warn { color: var(--accent-warning); }
        .chart { position: relative; height: 320px; }
    </style>
</head>
<body>
<div class="container">
    <div class="card header">
        <div>
            <h1>{{.Name}}</h1>
            {{if .Description}}<p class="subtitle">{{.Description}}</p>{{end}}
            <p class="subtitle">{{.Executor}} &middot; {{.Workload}}</p>
            <p class="subtitle">{{.StartTime.Format "2006-01-02 15:04:05 MST"}} &middot; {{formatDuration .Duration}}</p>
        </div>
        {{if not .Passed}}<span class="badge failed">FAILED</span>
        {{else if .Interrupted}}<span class="badge interrupted">INTERRUPTED</span>
        {{else}}<span class="badge passed">PASSED</span>{{end}}
    </div>

    {{with .Metrics}}
    <div class="card stats">
        <div><div class="stat-label">Operations</div><div class="stat-value">{{formatNumber .TotalOperations}}</div></div>
        <div><div class="stat-label">Ops/s</div><div class="stat-value">{{printf "%.1f" .OpsPerSecond}}</div></div>
        <div><div class="stat-label">Hits</div><div class="stat-value">{{formatNumber (resultCount . "HIT")}}</div></div>
        <div><div class="stat-label">Misses</div><div class="stat-value">{{formatNumber (resultCount . "MISS")}}</div></div>
        <div><div class="stat-label">Writes</div><div class="stat-value">{{formatNumber (resultCount . "WRITE")}}</div></div>
        <div><div class="stat-label">Exceptions</div><div class="stat-value">{{formatNumber (resultCount . "EXCEPTION")}}</div></div>
    </div>
    {{end}}
    <div class="card stats">
        <div><div class="stat-label">Iterations</div><div class="stat-value">{{.Iterations}}</div></div>
        <div><div class="stat-label">Throttled</div><div class="stat-value">{{.Throttled}}</div></div>
    </div>

    <div class="card">
        <h2>Throughput</h2>
        <div class="chart"><canvas id="throughput"></canvas></div>
    </div>

    {{with .Metrics}}{{range .Targets}}
    <div class="card">
        <h2>Target {{.Name}}</h2>
        <table>
            <tr><th>Result</th><th>Count</th><th>Mean</th><th>Min</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th></tr>
            {{range resultRows .}}
            <tr>
                <td>{{.Result}}</td><td>{{formatNumber .Count}}</td><td>{{formatLatency .Mean}}</td><td>{{formatLatency .Min}}</td>
                <td>{{formatLatency .P50}}</td><td>{{formatLatency .P90}}</td><td>{{formatLatency .P95}}</td>
                <td>{{formatLatency .P99}}</td><td>{{formatLatency .Max}}</td>
            </tr>
            {{end}}
        </table>
        {{if .VerificationFailures}}<p class="fail">{{.VerificationFailures}} values failed verification</p>{{end}}
    </div>
    {{end}}{{end}}

    {{if .Thresholds}}
    <div class="card">
        <h2>Thresholds</h2>
        <table>
            <tr><th>Result</th><th>Expression</th><th>Actual</th><th>Status</th></tr>
            {{range .Thresholds}}
            <tr>
                <td>{{.Result}}</td><td>{{.Expression}}</td><td>{{.Value}}</td>
                <td>{{if .Passed}}<span class="pass">&#10003;</span>{{else}}<span class="fail">&#10007;</span>{{end}}</td>
            </tr>
            {{end}}
        </table>
    </div>
    {{end}}

    {{if .WorkerErrors}}
    <div class="card">
        <h2>Workers stopped early</h2>
        <ul>{{range .WorkerErrors}}<li class="warn">{{.}}</li>{{end}}</ul>
    </div>
    {{end}}
</div>
<script>
    const series = {{.TimeSeriesJSON}};
    const results = ["HIT", "MISS", "WRITE", "REMOVE", "EXCEPTION"];
    const colors = ["#22c55e", "#f59e0b", "#3b82f6", "#8b5cf6", "#ef4444"];
    if (window.Chart && series.length > 0) {
        new Chart(document.getElementById("throughput"), {
            type: "line",
            data: {
                labels: series.map(p => p.elapsed.toFixed(1) + "s"),
                datasets: [{
                    label: "ops/s",
                    data: series.map(p => p.opsPerSecond),
                    borderColor: "#1e293b",
                    tension: 0.2
                }].concat(results.map((r, i) => ({
                    label: r,
                    data: series.map(p => (p.interval || {})[r] || 0),
                    borderColor: colors[i],
                    tension: 0.2
                })))
            },
            options: { responsive: true, maintainAspectRatio: false, animation: false }
        });
    }
</script>
</body>
</html>
`
