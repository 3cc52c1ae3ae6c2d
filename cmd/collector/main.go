package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notifcollector/internal/app"
)

func main() {
	var (
		cfgPath    string
		importPath string
	)
	flag.StringVar(&cfgPath, "config", "./collector.yaml", "path to config (yaml or json)")
	flag.StringVar(&importPath, "import", "", "load a JSON Lines message dump into the store and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if importPath != "" {
		f, err := os.Open(importPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		n, err := app.ImportMessages(ctx, cfgPath, f)
		_ = f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal import:", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "imported %d messages\n", n)
		return
	}

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.InputDone():
		reason = app.StopInputClosed
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
		os.Exit(1)
	}
}
