package app

import (
	"context"

	"timecapsule/pkg/state/shutdown"
)

// Shutdown stops accepting requests, halts the sweeper and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.state = "shutting_down"
	err := shutdown.Run(ctx,
		shutdown.Step{Name: "http", Fn: func(ctx context.Context) error {
			if a.srv == nil {
				return nil
			}
			done := make(chan error, 1)
			go func() { done <- a.srv.Shutdown() }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		shutdown.Step{Name: "unlock_sweeper", Fn: func(context.Context) error {
			if a.stopSweeper != nil {
				a.stopSweeper()
			}
			return nil
		}},
		shutdown.Step{Name: "gateway", Fn: func(context.Context) error {
			if a.gw != nil {
				a.gw.Close()
			}
			return nil
		}},
		shutdown.Step{Name: "telemetry", Fn: func(context.Context) error {
			a.traces.Close()
			return nil
		}},
		shutdown.Step{Name: "store", Fn: func(context.Context) error {
			return a.st.Close()
		}},
	)
	if err == nil {
		a.state = "stopped"
	}
	return err
}
