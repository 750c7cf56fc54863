// Package output provides console output for load test runs.
package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// ANSI escape codes for cursor control.
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveWorkers int
	TargetWorkers int

	OpsPerSecond float64
	TotalOps     uint64
	Hits         uint64
	Misses       uint64
	Exceptions   uint64
	Throttled    int64

	// ExceptionRate is exceptions over all attempts, 0.0 to 1.0.
	ExceptionRate float64

	// Worst P95 and overall mean over every result.
	LatencyP95 time.Duration
	LatencyAvg time.Duration

	Phase metrics.Phase
}

// ConsoleOutput manages live console output during a run.
type ConsoleOutput struct {
	testName       string
	executorDesc   string
	totalDuration  time.Duration
	updateInterval time.Duration
	writer         io.Writer
	isTTY          bool
	useColors      bool
	quiet          bool

	mu          sync.Mutex
	lastStats   *LiveStats
	linesOutput int
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	TestName string

	// Executor is a human description such as "4 workers for 30s".
	Executor       string
	TotalDuration  time.Duration
	UpdateInterval time.Duration
	Writer         io.Writer
	Quiet          bool
	ForceColors    bool
	ForceTTY       bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(config ConsoleOutputConfig) *ConsoleOutput {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.UpdateInterval == 0 {
		config.UpdateInterval = time.Second
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	useColors := config.ForceColors || (isTTY && supportsColors())

	return &ConsoleOutput{
		testName:       config.TestName,
		executorDesc:   config.Executor,
		totalDuration:  config.TotalDuration,
		updateInterval: config.UpdateInterval,
		writer:         config.Writer,
		isTTY:          isTTY,
		useColors:      useColors,
		quiet:          config.Quiet,
	}
}

// UpdateInterval returns how often the caller should refresh the display.
func (c *ConsoleOutput) UpdateInterval() time.Duration {
	return c.updateInterval
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok && (f == os.Stdout || f == os.Stderr) {
		return checkIsTerminal(f)
	}
	return false
}

// supportsColors checks if the terminal supports colors.
func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if runtime.GOOS == "windows" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// PrintHeader prints the run header.
func (c *ConsoleOutput) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	executorInfo := ""
	if c.executorDesc != "" {
		executorInfo = fmt.Sprintf(" [%s]", c.executorDesc)
	}

	c.writeln(c.colorize(line, color.FgCyan))
	c.writeln(c.colorize(fmt.Sprintf("%s - Running%s", c.testName, executorInfo), color.Bold))
	c.writeln(c.colorize(line, color.FgCyan))
	c.writeln("")
}

// Update redraws the live display. It does nothing unless the output is a
// terminal.
func (c *ConsoleOutput) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastStats = stats
	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

func (c *ConsoleOutput) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *ConsoleOutput) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	progressBar := c.renderProgressBar(stats.Progress, 40)
	progressPercent := fmt.Sprintf("%.0f%%", stats.Progress*100)
	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))

	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.colorize(progressBar, color.FgGreen),
		c.colorize(progressPercent, color.Bold),
		c.colorize(timeInfo, color.Faint)))
	lines = append(lines, fmt.Sprintf("Phase:    %s", c.colorize(string(stats.Phase), color.FgMagenta)))
	lines = append(lines, "")

	boxWidth := 55
	lines = append(lines, c.colorize(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight, color.Faint))

	workers := fmt.Sprintf("Workers: %s / %d", c.colorize(fmt.Sprintf("%d", stats.ActiveWorkers), color.FgCyan), stats.TargetWorkers)
	ops := fmt.Sprintf("Ops:         %s", c.colorize(formatNumber(stats.TotalOps), color.FgCyan))
	lines = append(lines, c.formatBoxRow(workers, ops, boxWidth))

	opsRate := fmt.Sprintf("Ops/s:   %s", c.colorize(fmt.Sprintf("%.1f", stats.OpsPerSecond), color.FgGreen))
	errColor := color.FgGreen
	if stats.ExceptionRate > 0.01 {
		errColor = color.FgYellow
	}
	if stats.ExceptionRate > 0.05 {
		errColor = color.FgRed
	}
	exc := fmt.Sprintf("Exceptions:  %s (%s)",
		c.colorize(formatNumber(stats.Exceptions), errColor),
		c.colorize(fmt.Sprintf("%.1f%%", stats.ExceptionRate*100), errColor))
	lines = append(lines, c.formatBoxRow(opsRate, exc, boxWidth))

	hits := fmt.Sprintf("Hits:    %s", c.colorize(formatNumber(stats.Hits), color.FgCyan))
	misses := fmt.Sprintf("Misses:      %s", c.colorize(formatNumber(stats.Misses), color.FgCyan))
	lines = append(lines, c.formatBoxRow(hits, misses, boxWidth))

	p95 := fmt.Sprintf("P95:     %s", c.colorize(formatDurationShort(stats.LatencyP95), color.FgBlue))
	avg := fmt.Sprintf("Avg:         %s", c.colorize(formatDurationShort(stats.LatencyAvg), color.FgBlue))
	lines = append(lines, c.formatBoxRow(p95, avg, boxWidth))

	if stats.Throttled > 0 {
		throttled := fmt.Sprintf("Throttled: %s", c.colorize(formatNumber(uint64(stats.Throttled)), color.FgYellow))
		lines = append(lines, c.formatBoxRow(throttled, "", boxWidth))
	}

	lines = append(lines, c.colorize(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight, color.Faint))
	return lines
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *ConsoleOutput) formatBoxRow(left, right string, boxWidth int) string {
	colWidth := (boxWidth - 4) / 2
	leftPadding := max(colWidth-visibleLen(left), 0)
	rightPadding := max(colWidth-visibleLen(right), 0)

	return fmt.Sprintf("%s %s%s%s %s%s %s",
		c.colorize(boxVertical, color.Faint),
		left, strings.Repeat(" ", leftPadding),
		c.colorize(boxVertical, color.Faint),
		right, strings.Repeat(" ", rightPadding),
		c.colorize(boxVertical, color.Faint))
}

func (c *ConsoleOutput) renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// PrintSummary prints the final run summary.
func (c *ConsoleOutput) PrintSummary(result *engine.Result) {
	if c.quiet {
		if result.Passed {
			c.writeln(c.colorize("PASSED", color.FgGreen))
		} else {
			c.writeln(c.colorize("FAILED", color.FgRed))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := "Completed ✓"
	statusColor := color.FgGreen
	switch {
	case !result.Passed:
		status = "Failed ✗"
		statusColor = color.FgRed
	case result.Interrupted:
		status = "Interrupted"
		statusColor = color.FgYellow
	}

	c.writeln("")
	c.writeln(c.colorize(line, color.FgCyan))
	c.writeln(fmt.Sprintf("%s - %s", c.colorize(result.Name, color.Bold), c.colorize(status, statusColor)))
	c.writeln(c.colorize(line, color.FgCyan))
	c.writeln("")

	c.writeln(fmt.Sprintf("Executor:      %s", result.Executor))
	c.writeln(fmt.Sprintf("Workload:      %s", result.Workload))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colorize(formatDuration(result.Duration), color.FgCyan)))
	c.writeln(fmt.Sprintf("Iterations:    %s", c.colorize(formatNumber(uint64(result.Iterations)), color.FgCyan)))
	if result.Throttled > 0 {
		c.writeln(fmt.Sprintf("Throttled:     %s", c.colorize(formatNumber(uint64(result.Throttled)), color.FgYellow)))
	}
	if result.Metrics != nil {
		c.writeln(fmt.Sprintf("Operations:    %s (%.1f/s)",
			c.colorize(formatNumber(result.Metrics.TotalOperations), color.FgCyan), result.Metrics.OpsPerSecond))
	}
	c.writeln("")

	if result.Metrics != nil {
		for _, ts := range result.Metrics.Targets {
			c.printTarget(ts)
		}
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colorize("Thresholds:", color.Bold))
		for _, t := range result.Thresholds {
			mark := c.colorize("✓", color.FgGreen)
			if !t.Passed {
				mark = c.colorize("✗", color.FgRed)
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", mark, t.Result, t.Expression, t.Value))
		}
		c.writeln("")
	}

	if len(result.WorkerErrors) > 0 {
		c.writeln(c.colorize("Workers stopped early:", color.Bold))
		for _, msg := range result.WorkerErrors {
			c.writeln("  " + c.colorize(msg, color.FgYellow))
		}
		c.writeln("")
	}
}

func (c *ConsoleOutput) printTarget(ts metrics.TargetStats) {
	c.writeln(c.colorize(fmt.Sprintf("Target %s:", ts.Name), color.Bold))
	c.writeln(c.colorize(fmt.Sprintf("  %-10s %10s %9s %9s %9s %9s %9s", "RESULT", "COUNT", "MEAN", "P50", "P95", "P99", "MAX"), color.Faint))
	for _, res := range metrics.AllResults() {
		ls, ok := ts.Results[res]
		if !ok || ls.Count == 0 {
			continue
		}
		c.writeln(fmt.Sprintf("  %-10s %10s %9s %9s %9s %9s %9s",
			res, formatNumber(ls.Count),
			formatDurationShort(ls.Mean), formatDurationShort(ls.P50),
			formatDurationShort(ls.P95), formatDurationShort(ls.P99), formatDurationShort(ls.Max)))
	}
	if ts.VerificationFailures > 0 {
		c.writeln(fmt.Sprintf("  %s %s", c.colorize("verification failures:", color.FgRed), formatNumber(ts.VerificationFailures)))
	}
	c.writeln("")
}

// PrintNonInteractiveUpdate prints a one-line status, for output that is
// not a terminal such as CI logs.
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] %s %.0f%% | Workers: %d | Ops: %d | Ops/s: %.1f | Exceptions: %d (%.1f%%) | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Phase,
		stats.Progress*100,
		stats.ActiveWorkers,
		stats.TotalOps,
		stats.OpsPerSecond,
		stats.Exceptions,
		stats.ExceptionRate*100,
		formatDurationShort(stats.LatencyP95)))
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// colorize wraps text in color codes if colors are enabled.
func (c *ConsoleOutput) colorize(text string, attrs ...color.Attribute) string {
	if !c.useColors {
		return text
	}
	col := color.New(attrs...)
	col.EnableColor()
	return col.Sprint(text)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// formatDurationShort formats a latency in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n uint64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// visibleLen is the display width of s without ANSI escapes.
func visibleLen(s string) int {
	return len([]rune(stripANSI(s)))
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}
	return result.String()
}

// StatsFromSnapshot builds LiveStats from a recorder snapshot and the
// strategy's statistics. stats may be nil before the first strategy starts.
func StatsFromSnapshot(snap *metrics.Snapshot, progress float64, stats *executor.Stats) *LiveStats {
	ls := &LiveStats{Progress: progress, Phase: metrics.PhaseInit}
	if stats != nil {
		ls.ActiveWorkers = stats.ActiveWorkers
		ls.TargetWorkers = stats.TargetWorkers
		ls.Throttled = stats.Throttled
		ls.Elapsed = stats.Elapsed
		if progress > 0 && progress < 1 {
			ls.Remaining = time.Duration(float64(stats.Elapsed) * (1 - progress) / progress)
		} else if stats.TotalDuration > 0 {
			ls.Remaining = max(stats.TotalDuration-stats.Elapsed, 0)
		}
	}
	if snap == nil {
		return ls
	}

	ls.Phase = snap.Phase
	ls.OpsPerSecond = snap.OpsPerSecond
	ls.TotalOps = snap.TotalOperations
	ls.Hits = snap.Totals[metrics.ResultHit]
	ls.Misses = snap.Totals[metrics.ResultMiss]
	ls.Exceptions = snap.Totals[metrics.ResultException]
	if snap.TotalOperations > 0 {
		ls.ExceptionRate = float64(ls.Exceptions) / float64(snap.TotalOperations)
	}

	var total time.Duration
	var count uint64
	for _, res := range metrics.AllResults() {
		s := snap.Result(res)
		ls.LatencyP95 = max(ls.LatencyP95, s.P95)
		total += s.Total
		count += s.Count
	}
	if count > 0 {
		ls.LatencyAvg = total / time.Duration(count)
	}
	return ls
}
