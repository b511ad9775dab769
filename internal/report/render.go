package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	detailStyle = lipgloss.NewStyle().Faint(true)
)

// Render returns the styled terminal rendering of a report. With styled
// false every lipgloss style is skipped, which is what the text file
// writer uses.
func Render(r Report, styled bool) string {
	apply := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(apply(titleStyle, fmt.Sprintf("tunnelprobe run %s", r.RunID)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("started %s\n\n", r.StartedUTC.Format("2006-01-02T15:04:05Z")))

	for _, o := range r.Outcomes {
		var status string
		switch o.Status {
		case StatusPassed:
			status = apply(passStyle, "PASS")
		case StatusFailed:
			status = apply(failStyle, "FAIL")
		case StatusError:
			status = apply(errStyle, "ERR ")
		default:
			status = strings.ToUpper(string(o.Status))
		}

		b.WriteString(fmt.Sprintf("%s  %-18s %s\n", status, o.Name, o.Message))
		for _, line := range o.Evidence {
			b.WriteString(apply(detailStyle, "      "+line))
			b.WriteString("\n")
		}
	}

	if r.IP != nil && len(r.IP.Locations) > 0 {
		b.WriteString("\nExit locations:\n")
		for _, loc := range r.IP.Locations {
			b.WriteString(fmt.Sprintf("  %s  %s, %s  (%s)  [%.4f, %.4f]\n",
				loc.Address, loc.City, loc.Country, loc.ISP, loc.Lat, loc.Lon))
		}
	}

	if r.Peer.AllAddresses.Len() > 0 {
		all := r.Peer.AllAddresses.Values()
		sort.Strings(all)
		b.WriteString("\nNegotiation-visible addresses: " + strings.Join(all, ", ") + "\n")
	}

	for _, n := range r.Notes {
		b.WriteString("Note: " + n + "\n")
	}

	overall := r.Overall
	if styled {
		switch r.Overall {
		case "PASS":
			overall = passStyle.Render(overall)
		case "FAIL":
			overall = failStyle.Render(overall)
		default:
			overall = errStyle.Render(overall)
		}
	}
	b.WriteString("\nOverall: " + overall + "\n")

	return b.String()
}
