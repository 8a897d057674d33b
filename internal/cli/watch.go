package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"timecapsule/pkg/lockclock"
	"timecapsule/pkg/view"
)

const refetchAttempts = 3

func (a *app) watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <capsule-id>",
		Short: "Count down until a capsule and its entries unlock",
		Long: `Show a live countdown for the capsule and each locked entry. When an item
unlocks the capsule is fetched again and the revealed content is printed.
Exits once nothing is locked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), cmd.OutOrStdout(), args[0], interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "countdown refresh interval")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) watch(ctx context.Context, w io.Writer, id string, interval time.Duration) error {
	s := a.cfg.Session()
	c, err := a.client.GetCapsule(ctx, s, id)
	if err != nil {
		return err
	}
	writeCapsule(w, c)

	live := isTerminal(w)
	var mu sync.Mutex
	shown := make(map[string]bool)
	onTick := func(item string, st lockclock.State) {
		mu.Lock()
		defer mu.Unlock()
		if live {
			fmt.Fprintf(w, "\r\033[K%s  %s", item, lockLabel(st))
			return
		}
		if !shown[item] {
			shown[item] = true
			fmt.Fprintf(w, "%s  %s\n", item, lockLabel(st))
		}
	}

	unlocked := make(chan string, 1+len(c.Entries))
	board := view.NewBoard(ctx, interval, onTick, func(item string) { unlocked <- item })
	defer board.Close()

	pending := board.TrackCapsule(c)
	if pending == 0 {
		fmt.Fprintln(w, "\nnothing is locked")
		return nil
	}
	fmt.Fprintf(w, "\nwatching %d locked item(s)\n", pending)

	for pending > 0 {
		select {
		case <-ctx.Done():
			return nil
		case item := <-unlocked:
			pending--
			mu.Lock()
			if live {
				fmt.Fprint(w, "\r\033[K")
			}
			mu.Unlock()
			if err := a.reveal(ctx, w, id, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// reveal refetches the capsule and prints the item that just unlocked. The
// server may lag the local clock slightly, so a still-locked item is fetched
// again a few times.
func (a *app) reveal(ctx context.Context, w io.Writer, capsuleID, item string) error {
	for attempt := 0; attempt < refetchAttempts; attempt++ {
		c, err := a.client.GetCapsule(ctx, a.cfg.Session(), capsuleID)
		if err != nil {
			return err
		}
		if item == c.ID && !c.Lock.Locked {
			fmt.Fprintf(w, "\n== %s unlocked ==\n", c.Title)
			writeCapsule(w, c)
			return nil
		}
		for _, e := range c.Entries {
			if e.ID == item && !e.Lock.Locked {
				fmt.Fprintln(w, "\n== entry unlocked ==")
				writeEntry(w, e)
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
	fmt.Fprintf(w, "\n%s unlocked, content not yet available\n", item)
	return nil
}
