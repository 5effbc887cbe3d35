package dashboard

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/api"
)

// RenderSessions writes the session list with quick stats.
func RenderSessions(out io.Writer, sessions []api.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions created yet")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSESSION\tCREATED\tATTENDANCE")
	total := 0
	for _, s := range sessions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", s.ID, s.SessionName, s.CreatedAt, s.AttendanceCount)
		total += s.AttendanceCount
	}
	w.Flush()
	fmt.Fprintf(out, "Total: %d sessions, %d attendance records\n", len(sessions), total)
}

// RenderRecords writes the attendance table for the selected session.
func RenderRecords(out io.Writer, records []api.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No attendance records yet")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEMAIL\tTIME\tIP\tPHOTO")
	withPhoto := 0
	for _, r := range records {
		photo := "no"
		if r.Photo != "" {
			photo = "yes"
			withPhoto++
		}
		ip := r.IPAddress
		if ip == "" {
			ip = "N/A"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Username, r.Email, r.MarkedAt, ip, photo)
	}
	w.Flush()
	fmt.Fprintf(out, "Total: %d students (%d with photos)\n", len(records), withPhoto)
}
