package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ClockTool reports the current date, time, and calendar context.
type ClockTool struct {
	now func() time.Time // injectable for tests
}

// NewClockTool creates a new current_datetime tool.
func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

// ClockManifest returns the plugin manifest for the current_datetime tool.
func ClockManifest() *PluginManifest {
	return &PluginManifest{
		Name:        "current_datetime",
		Description: "Current date, time, timezone, and temporal context",
		Provider:    "native",
		Tools: []ToolSpec{
			{
				Name:        "current_datetime",
				Description: "Get the current date, time, timezone, and calendar context. Call this whenever you need to know what time it is, reference today's date, calculate relative dates, or make any time-sensitive statement.",
				ReadOnly:    true,
				Parameters: map[string]ParamSpec{
					"timezone": {
						Type:        "string",
						Description: "Optional IANA timezone name (e.g. Europe/Paris); defaults to the host's local zone",
					},
				},
			},
		},
	}
}

type clockInput struct {
	Timezone string `json:"timezone"`
}

func (t *ClockTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return ClockManifest().Tools[0].EinoInfo(), nil
}

func (t *ClockTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input clockInput
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
			return "", fmt.Errorf("current_datetime: parse input: %w", err)
		}
	}

	loc := time.Local
	if input.Timezone != "" {
		l, err := time.LoadLocation(input.Timezone)
		if err != nil {
			return "", fmt.Errorf("current_datetime: unknown timezone %q", input.Timezone)
		}
		loc = l
	}

	now := t.now().In(loc)
	return formatDatetime(now), nil
}

// formatDatetime renders the temporal context block.
func formatDatetime(now time.Time) string {
	utc := now.UTC()
	zone, _ := now.Zone()
	isoYear, isoWeek := now.ISOWeek()

	var sb strings.Builder
	fmt.Fprintf(&sb, "- **Date:** %s\n", now.Format("Monday, January 02, 2006"))
	fmt.Fprintf(&sb, "- **Time:** %s %s (UTC%s)\n", now.Format("03:04:05 PM"), zone, now.Format("-07:00"))
	fmt.Fprintf(&sb, "- **UTC:** %sZ\n", utc.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "- **ISO Week:** %d-W%02d-%d\n", isoYear, isoWeek, isoWeekday(now))
	fmt.Fprintf(&sb, "- **Day:** %d/%d\n", now.YearDay(), daysInYear(now.Year()))
	fmt.Fprintf(&sb, "- **Unix:** %d", now.Unix())
	return sb.String()
}

// isoWeekday maps Go's Sunday-based weekday to ISO 8601 (Monday=1..Sunday=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func daysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

var _ tool.InvokableTool = (*ClockTool)(nil)
