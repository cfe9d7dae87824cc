// Command autofill manages autofill profiles and their files, and fills web
// forms from them, either in a saved HTML page or in a live browser.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/autofill/pkg/notify"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := &cli{out: os.Stdout}
	err := newRootCmd(c).ExecuteContext(ctx)
	if cerr := c.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, notify.FromError(err).Render())
		cancel()
		os.Exit(1)
	}
}
