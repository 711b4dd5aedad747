package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
)

const version = "0.4.0"

func init() {
	// トレイとホットキーはメインスレッドで動かす必要がある
	runtime.LockOSThread()
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
