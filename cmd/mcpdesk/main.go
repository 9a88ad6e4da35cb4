package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	ctx, cancel := signalAwareContext(context.Background())
	err := newRootCommand().ExecuteContext(ctx)
	cancel()
	if err != nil {
		code, message, silent := describeExit(err)
		if !silent && message != "" {
			fmt.Fprintln(os.Stderr, "error:", message)
		}
		os.Exit(code)
	}
}
