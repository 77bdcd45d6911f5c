package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/raysh454/tagscope/internal/app"
	"github.com/raysh454/tagscope/internal/cli"
	"github.com/raysh454/tagscope/internal/interfaces"
	"github.com/raysh454/tagscope/internal/logging"
	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/server"
	"github.com/raysh454/tagscope/internal/snapshot"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	parsed, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}

	logger := logging.NewStdoutLogger("tagscope")

	cfg := app.DefaultConfig()
	if parsed.DBPath != "" {
		cfg.StoreCfg.Path = parsed.DBPath
	}

	if parsed.Serve {
		return serve(parsed, cfg, logger)
	}
	return runOnce(parsed, cfg, logger)
}

func serve(parsed *cli.CLIArgs, cfg *app.Config, logger logging.Logger) error {
	srv, err := server.NewServer(server.Config{
		ListenAddr: parsed.Addr,
		AppConfig:  cfg,
		Persist:    true,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	logger.Info("listening", logging.Field{Key: "addr", Value: parsed.Addr})
	return srv.HTTPServer().ListenAndServe()
}

func runOnce(parsed *cli.CLIArgs, cfg *app.Config, logger logging.Logger) error {
	obs, err := snapshot.LoadObservation(parsed.Snapshot)
	if err != nil {
		return err
	}

	// Persist the run only when a database was asked for.
	var runStore interfaces.RunStore
	if parsed.DBPath != "" {
		runStore, err = app.OpenStore(cfg, logger)
		if err != nil {
			return err
		}
	}

	pipeline, err := app.NewPipeline(cfg, runStore, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	var ruleSet []model.Rule
	if parsed.Rules != "" {
		info, err := os.Stat(parsed.Rules)
		if err != nil {
			return fmt.Errorf("checking rules path: %w", err)
		}
		loaded := pipeline.LoadRules(parsed.Rules, info.IsDir())
		for _, loadErr := range loaded.Errors {
			logger.Warn("rule rejected",
				logging.Field{Key: "source", Value: loadErr.Source},
				logging.Field{Key: "error", Value: loadErr.Error})
		}
		ruleSet = loaded.Rules
	}

	run, err := pipeline.Run(context.Background(), obs, ruleSet, parsed.Environment)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
