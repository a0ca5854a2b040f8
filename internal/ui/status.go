package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/FastTravelAS/chippy/internal/discovery"
	"github.com/FastTravelAS/chippy/internal/status"
	"github.com/charmbracelet/lipgloss"
)

// StatusReport is what `chippy status` shows for one instance.
type StatusReport struct {
	Instance   string
	Server     string         // status.Online, status.Offline or "" when never started
	Clients    map[int]string // client id to recorded status
	Discovered []*discovery.Instance
	Width      int
}

// Render draws the server line, one row per client and, when present, the
// servers found over mDNS.
func (r *StatusReport) Render() string {
	width := clampWidth(r.Width)

	var lines []string
	lines = append(lines, KeyStyle.Render("Instance:")+" "+ValueStyle.Render(r.Instance))
	lines = append(lines, KeyStyle.Render("Server:")+" "+renderServer(r.Server))
	lines = append(lines, KeyStyle.Render("Clients:")+" "+ValueStyle.Render(strconv.Itoa(len(r.Clients))))

	if len(r.Clients) > 0 {
		lines = append(lines, "  "+Divider(width-8))
		ids := make([]int, 0, len(r.Clients))
		for id := range r.Clients {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			lines = append(lines, KeyStyle.Render(fmt.Sprintf("client %d", id))+" "+renderClient(r.Clients[id]))
		}
	}

	if len(r.Discovered) > 0 {
		lines = append(lines, "  "+Divider(width-8))
		lines = append(lines, SubtitleStyle.Render("On this network:"))
		for _, inst := range r.Discovered {
			v := inst.Version
			if v == "" {
				v = "unknown"
			}
			lines = append(lines, KeyStyle.Render(inst.Name)+" "+ValueStyle.Render(inst.Addr())+" "+HintStyle.Render("("+v+")"))
		}
	}

	return BoxStyle(width, PrimaryColor).Render(strings.Join(lines, "\n"))
}

func (r *StatusReport) String() string { return r.Render() }

func renderServer(s string) string {
	switch s {
	case status.Online:
		return OnlineStyle.Render(OnlineMarker + " online")
	case status.Offline:
		return OfflineStyle.Render(OfflineMarker + " offline")
	default:
		return HintStyle.Render(OfflineMarker + " never started")
	}
}

func renderClient(s string) string {
	if s == status.ClientTransactionMode {
		return OnlineStyle.Render("transaction mode")
	}
	return PendingStyle.Render(strings.ToLower(s))
}

// RenderError draws a failure box with optional hints below the message.
func RenderError(title string, err error, hints []string, width int) string {
	width = clampWidth(width)
	lines := []string{
		ErrorTitleStyle.Render(FailureMarker + "  " + title),
		"",
		ErrorMessageStyle.Render(err.Error()),
	}
	if len(hints) > 0 {
		lines = append(lines, "")
		for _, h := range hints {
			lines = append(lines, HintStyle.Render("• "+h))
		}
	}
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ErrorColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}
