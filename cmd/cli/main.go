package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"switchdesk/internal/cli/api"
	"switchdesk/internal/cli/command"
	"switchdesk/internal/cli/config"
	"switchdesk/internal/cli/form"
	"switchdesk/internal/cli/grid"
	httpclient "switchdesk/internal/cli/http"
	"switchdesk/internal/cli/repl"
	"switchdesk/internal/cli/state"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	statePath := flag.String("state", "", "Override view state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	view, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load view state failed: %v\n", err)
		os.Exit(1)
	}
	if view.BaseURL != "" {
		cfg.BaseURL = view.BaseURL
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if view.PageSize == 0 {
		view.PageSize = cfg.PageSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)
	problems := api.New(client)

	controller := grid.NewController(ctx, problems, grid.Options{
		Debounce:  cfg.Debounce,
		PageSize:  cfg.PageSize,
		MoreLimit: cfg.MoreLimit,
	})
	defer controller.Close()
	controller.Restore(view.Search, view.Sort, view.PageSize)

	session := repl.New(repl.Options{
		Client:     client,
		Commands:   command.Registry(),
		Grid:       controller,
		Form:       form.New(problems, problems),
		View:       &view,
		StatePath:  cfg.StatePath,
		PrettyJSON: *cfg.PrettyJSON,
		Out:        os.Stdout,
	})
	if err := session.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
