package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jcallum/medley/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnixMilli returns a humanized version of time given in unix millisecond. The zeroMsg is the string returned when
// the time is 0 and assumed to be not set.
func UnixMilli(unix int64, zeroMsg string, detail bool) string {
	if unix == 0 {
		return zeroMsg
	}

	if !detail {
		return humanize.Time(time.UnixMilli(unix))
	}

	relativeTime := humanize.Time(time.UnixMilli(unix))
	realTime := time.UnixMilli(unix).Format(time.RFC850)
	return fmt.Sprintf("%s (%s)", realTime, relativeTime)
}

// Duration returns a humanized duration time for two epoch milli second times.
func Duration(start, end int64) string {
	if start == 0 {
		return "0s"
	}

	startTime := time.UnixMilli(start)
	endTime := time.Now()

	if end != 0 {
		endTime = time.UnixMilli(end)
	}

	duration := endTime.Sub(startTime)

	truncate := 1 * time.Second

	return "~" + duration.Truncate(truncate).String()
}

// Progress renders a completion percentage for table output.
func Progress(percent float64) string {
	return fmt.Sprintf("%.0f%%", percent)
}

func TaskStatus(status string) string {
	if status == string(models.TaskStatusUnknown) || status == "" {
		return "Unknown"
	}

	// Because of how colorizing a string works we need to
	// do the manipulations on case first or else it will not work.
	toTitle := cases.Title(language.AmericanEnglish)
	toLower := cases.Lower(language.AmericanEnglish)
	status = toTitle.String(toLower.String(status))
	return colorizeTaskStatus(status)
}

func colorizeTaskStatus(status string) string {
	switch strings.ToLower(status) {
	case string(models.TaskStatusUnknown):
		return color.RedString(status)
	case string(models.TaskStatusPending):
		return color.YellowString(status)
	case string(models.TaskStatusRunning):
		return color.YellowString(status)
	case string(models.TaskStatusPaused):
		return color.MagentaString(status)
	case string(models.TaskStatusCompleted):
		return color.GreenString(status)
	case string(models.TaskStatusFailed):
		return color.RedString(status)
	case string(models.TaskStatusCancelled):
		return color.RedString(status)
	default:
		return status
	}
}

func SliceJoin(slice []string, msg string) string {
	if len(slice) == 0 {
		return msg
	}

	return strings.Join(slice, ", ")
}
