package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"timecapsule/pkg/lockclock"
	"timecapsule/pkg/view"
)

func formatRemaining(r *lockclock.Remaining) string {
	if r == nil {
		return "0d 00h 00m 00s"
	}
	return fmt.Sprintf("%dd %02dh %02dm %02ds", r.Days, r.Hours, r.Minutes, r.Seconds)
}

func lockLabel(st lockclock.State) string {
	if !st.Locked {
		return "unlocked"
	}
	return "locked, opens in " + formatRemaining(st.Remaining)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func writeCapsule(w io.Writer, c view.Capsule) {
	fmt.Fprintf(w, "%s  [%s]  %s\n", c.Title, c.Kind, c.ID)
	fmt.Fprintf(w, "created by %s on %s (%s)\n", c.CreatedBy, stamp(c.CreatedAt), humanize.Time(c.CreatedAt))
	if c.LockDate != nil {
		fmt.Fprintf(w, "lock: %s (%s)\n", lockLabel(c.Lock), stamp(*c.LockDate))
	} else {
		fmt.Fprintln(w, "lock: none")
	}
	if c.Description != "" {
		fmt.Fprintf(w, "\n%s\n", c.Description)
	}
	if c.Content != "" {
		fmt.Fprintf(w, "\n%s\n", c.Content)
	}
	if len(c.Media) > 0 {
		fmt.Fprintln(w, "\nmedia:")
		for _, m := range c.Media {
			fmt.Fprintf(w, "  - %-5s %s\n", m.Kind, m.URL)
		}
	}
	if len(c.Members) > 0 {
		fmt.Fprintln(w, "\nmembers:")
		for _, m := range c.Members {
			fmt.Fprintf(w, "  - %s <%s>\n", m.Name, m.Email)
		}
	}
	if len(c.Entries) > 0 {
		fmt.Fprintf(w, "\nentries (%d):\n", len(c.Entries))
		for _, e := range c.Entries {
			writeEntry(w, e)
		}
	}
}

func writeEntry(w io.Writer, e view.Entry) {
	fmt.Fprintf(w, "  - %s by %s at %s: ", e.ID, e.CreatedBy, stamp(e.CreatedAt))
	if e.Lock.Locked {
		fmt.Fprintln(w, lockLabel(e.Lock))
		return
	}
	fmt.Fprintln(w, e.Content)
	for _, m := range e.Media {
		fmt.Fprintf(w, "      %-5s %s\n", m.Kind, m.URL)
	}
}

func writeTree(w io.Writer, t view.TreeResponse) {
	if len(t.Groups) == 0 {
		fmt.Fprintln(w, "no capsules")
	}
	for _, g := range t.Groups {
		fmt.Fprintf(w, "%s\n", g.Day)
		for _, c := range g.Capsules {
			fmt.Fprintf(w, "  %-36s  %-13s  %-30s  %s\n", c.ID, c.Kind, truncate(c.Title, 30), lockLabel(c.Lock))
		}
	}
	fmt.Fprintf(w, "\n%d locked, %d unlocked\n", t.Counts.Locked, t.Counts.Unlocked)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
