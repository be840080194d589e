package app

import (
	"context"
	"fmt"
	"os"
)

// Reset clears the local history artifact and polling state.
func (a *App) Reset(ctx context.Context) error {
	mon := a.newMonitor()
	if err := mon.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "monitoring state reset")
	return nil
}
