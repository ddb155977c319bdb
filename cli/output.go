package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/gateway"
	"github.com/yllada/claw-manager/history"
)

func levelLabel(level string) string {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return color.MagentaString("DBG")
	case "WARN", "WARNING":
		return color.YellowString("WRN")
	case "ERROR":
		return color.New(color.FgRed, color.Bold).Sprint("ERR")
	default:
		return color.CyanString("INF")
	}
}

func stateLabel(st gateway.State) string {
	name := strings.ToUpper(st.String())
	switch st {
	case gateway.StateOnline:
		return color.New(color.FgGreen, color.Bold).Sprint(name)
	case gateway.StateStarting, gateway.StateStopping:
		return color.YellowString(name)
	case gateway.StateError:
		return color.New(color.FgRed, color.Bold).Sprint(name)
	default:
		return color.HiBlackString(name)
	}
}

// formatEvent renders a supervisor log event as one terminal line.
func formatEvent(ev gateway.Event) string {
	return fmt.Sprintf("%s %s %s",
		color.HiBlackString(ev.Time.Format("15:04:05")),
		levelLabel(ev.Level.String()),
		ev.Message)
}

// eventPrinter returns an observer that echoes log events to w.
func eventPrinter(w io.Writer) func(gateway.Event) {
	return func(ev gateway.Event) {
		if ev.Kind != gateway.EventLog {
			return
		}
		fmt.Fprintln(w, formatEvent(ev))
	}
}

// statusRow is one line of the status table.
type statusRow struct {
	State      gateway.State
	Endpoint   gateway.Endpoint
	Owned      bool
	ConfigPath string
}

func writeStatusTable(w io.Writer, rows ...statusRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tENDPOINT\tOWNED\tTOKEN\tCONFIG")
	fmt.Fprintln(tw, "-----\t--------\t-----\t-----\t------")
	for _, r := range rows {
		owned := "No"
		if r.Owned {
			owned = "Yes"
		}
		token := "-"
		if r.Endpoint.AuthToken != "" {
			token = common.MaskSecret(r.Endpoint.AuthToken)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			strings.ToUpper(r.State.String()), r.Endpoint.BaseURL, owned, token, r.ConfigPath)
	}
	return tw.Flush()
}

// mergeEntries combines history and gateway log entries, keeps those
// matching f, orders them by time and keeps the newest f.Limit.
func mergeEntries(f history.Filter, sets ...[]history.Entry) []history.Entry {
	var out []history.Entry
	for _, set := range sets {
		for _, e := range set {
			if f.Matches(e) {
				out = append(out, e)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

func writeEntries(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No log entries found.")
		return
	}
	for _, e := range entries {
		source := e.Source
		if source == "" {
			source = "manager"
		}
		fmt.Fprintf(w, "%s %s %s %s\n",
			color.HiBlackString(e.Time.Format("2006-01-02 15:04:05")),
			levelLabel(e.Level),
			color.HiBlackString("["+source+"]"),
			e.Message)
	}
}

func writeSessions(w io.Writer, sessions []history.Session) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCREATED\tMESSAGES\tMODEL")
	fmt.Fprintln(tw, "-------\t-------\t--------\t-----")
	for _, s := range sessions {
		id, created := s.ID, s.Created.Format("2006-01-02 15:04")
		if s.Active {
			id = color.GreenString(s.ID)
			created = "Current Session"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", id, created, s.Messages, s.Model)
	}
	return tw.Flush()
}
