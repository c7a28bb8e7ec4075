package dashboard

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ytget/ytflow/internal/model"
	"github.com/ytget/ytflow/internal/queue"
)

// Column widths in terminal cells
const (
	idWidth       = 8
	titleWidth    = 36
	typeWidth     = 5
	qualityWidth  = 7
	statusWidth   = 11
	barWidth      = 20
	percentWidth  = 6
	speedWidth    = 10
	etaWidth      = 8
	resultWidth   = 48
	columnSpacing = "  "
)

var statusColors = map[model.TaskStatus]*color.Color{
	model.TaskStatusQueued:      color.New(color.FgHiBlack),
	model.TaskStatusDownloading: color.New(color.FgCyan),
	model.TaskStatusProcessing:  color.New(color.FgYellow),
	model.TaskStatusCompleted:   color.New(color.FgGreen),
	model.TaskStatusFailed:      color.New(color.FgRed),
	model.TaskStatusCancelled:   color.New(color.FgMagenta),
}

var (
	titleStyle   = color.New(color.Bold)
	sectionStyle = color.New(color.Bold, color.Underline)
	mutedStyle   = color.New(color.FgHiBlack)
)

// Snapshot is the state shown by a single frame
type Snapshot struct {
	Stats         queue.Stats
	Active        []model.DownloadTask
	Recent        []model.DownloadTask
	Limit         int
	EngineVersion string
	OutputDir     string
	UpdatedAt     time.Time
}

// Render builds a full frame for s
func Render(s Snapshot) string {
	var b strings.Builder

	renderHeader(&b, s)
	b.WriteString("\n")
	renderActive(&b, s.Active)
	b.WriteString("\n")
	renderRecent(&b, s.Recent)
	b.WriteString("\n")
	renderFooter(&b, s)

	return b.String()
}

// Signature identifies the visible content of s, ignoring the update time
func Signature(s Snapshot) string {
	s.UpdatedAt = time.Time{}
	return Render(s)
}

func renderHeader(b *strings.Builder, s Snapshot) {
	engine := s.EngineVersion
	if engine == "" {
		engine = "resolving"
	}

	fmt.Fprintf(b, "%s  queued %d  active %d/%d  completed %d  failed %d  cancelled %d  yt-dlp %s",
		titleStyle.Sprint("ytflow"),
		s.Stats.Queued,
		s.Stats.Active,
		s.Limit,
		s.Stats.Completed,
		s.Stats.Failed,
		s.Stats.Cancelled,
		engine,
	)

	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(b, "  %s", mutedStyle.Sprintf("updated %s", s.UpdatedAt.Format(time.TimeOnly)))
	}
	b.WriteString("\n")
}

func renderActive(b *strings.Builder, tasks []model.DownloadTask) {
	b.WriteString(sectionStyle.Sprint("Active"))
	b.WriteString("\n")

	if len(tasks) == 0 {
		b.WriteString(mutedStyle.Sprint("  no active downloads"))
		b.WriteString("\n")
		return
	}

	b.WriteString(row(
		Fit("ID", idWidth),
		Fit("TITLE", titleWidth),
		Fit("TYPE", typeWidth),
		Fit("QUALITY", qualityWidth),
		Fit("STATUS", statusWidth),
		Fit("PROGRESS", barWidth+len(columnSpacing)+percentWidth),
		Fit("SPEED", speedWidth),
		"ETA",
	))

	for _, t := range tasks {
		percent := t.Progress
		if t.Status == model.TaskStatusProcessing {
			percent = t.ProcessingProgress
		}

		speed := t.Speed
		if speed == "" {
			speed = "—"
		}

		b.WriteString(row(
			Fit(t.GetShortID(), idWidth),
			Fit(t.GetDisplayTitle(), titleWidth),
			Fit(string(t.Kind), typeWidth),
			Fit(t.Quality, qualityWidth),
			ColorStatus(t.Status, Fit(t.Status.String(), statusWidth)),
			ProgressBar(percent, barWidth),
			Fit(fmt.Sprintf("%5.1f%%", percent), percentWidth),
			Fit(speed, speedWidth),
			Fit(t.GetETAString(), etaWidth),
		))
	}
}

func renderRecent(b *strings.Builder, tasks []model.DownloadTask) {
	b.WriteString(sectionStyle.Sprint("Recent"))
	b.WriteString("\n")

	if len(tasks) == 0 {
		b.WriteString(mutedStyle.Sprint("  nothing finished yet"))
		b.WriteString("\n")
		return
	}

	for _, t := range tasks {
		b.WriteString(row(
			Fit(t.GetShortID(), idWidth),
			Fit(t.GetDisplayTitle(), titleWidth),
			Fit(string(t.Kind), typeWidth),
			ColorStatus(t.Status, Fit(t.Status.String(), statusWidth)),
			Fit(Result(t), resultWidth),
		))
	}
}

func renderFooter(b *strings.Builder, s Snapshot) {
	b.WriteString(mutedStyle.Sprintf("Output: %s", s.OutputDir))
	b.WriteString("\n")
}

// Result summarises the outcome of a finished task
func Result(t model.DownloadTask) string {
	switch t.Status {
	case model.TaskStatusCompleted:
		if len(t.OutputPaths) == 0 {
			return "done"
		}
		name := filepath.Base(t.OutputPaths[0])
		if extra := len(t.OutputPaths) - 1; extra > 0 {
			name = fmt.Sprintf("%s (+%d)", name, extra)
		}
		return name
	case model.TaskStatusFailed:
		return "ERR: " + t.Error
	case model.TaskStatusCancelled:
		return "cancelled"
	}
	return ""
}

// ProgressBar draws a bar of w cells for percent
func ProgressBar(percent float64, w int) string {
	inner := w - 2
	if inner <= 0 {
		return ""
	}

	percent = min(max(percent, 0), 100)
	filled := int(percent / 100 * float64(inner))

	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", inner-filled) + "]"
}

// ColorStatus paints cell with the colour of status
func ColorStatus(status model.TaskStatus, cell string) string {
	if c, ok := statusColors[status]; ok {
		return c.Sprint(cell)
	}
	return cell
}

func row(cells ...string) string {
	return "  " + strings.TrimRight(strings.Join(cells, columnSpacing), " ") + "\n"
}
