package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kilnpkg/kiln/pkg/build"
	"github.com/kilnpkg/kiln/pkg/command"
	"github.com/kilnpkg/kiln/pkg/compiler"
	"github.com/kilnpkg/kiln/pkg/config"
	"github.com/kilnpkg/kiln/pkg/graph"
	"github.com/kilnpkg/kiln/pkg/inspect"
	"github.com/kilnpkg/kiln/pkg/logging"
	"github.com/kilnpkg/kiln/pkg/manifest"
	"github.com/kilnpkg/kiln/pkg/output"
	"github.com/kilnpkg/kiln/pkg/watcher"
)

func main() {
	f := pflag.NewFlagSet("kiln", pflag.ContinueOnError)
	f.String("root", ".", "Directory to search for the project manifest")
	f.String("profile", "dev", "Build profile to configure")
	f.Int("jobs", 0, "Number of parallel jobs for graph construction (0 = all CPUs)")
	f.Bool("watch", false, "Keep running and regenerate on source changes")
	f.Bool("serve", false, "Serve the derived build graph over HTTP")
	f.Int("port", 8080, "Port for the inspection server (only used with --serve)")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.String("verbosity", "", "Log verbosity by name (trace, debug, info, warn, error)")
	if err := f.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		output.Error("%v", err)
		os.Exit(2)
	}

	cfg, err := config.Load(f)
	if err != nil {
		output.Error("%v", err)
		os.Exit(2)
	}
	logging.SetLevel(cfg.LogLevel())

	ctx := logging.WithRunID(context.Background(), logging.NewRunID())

	if err := run(ctx, cfg); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	manifestPath, err := manifest.Find(cfg.Root)
	if err != nil {
		return err
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	logging.DebugContext(ctx, "loaded manifest",
		"package", m.Package.Name, "version", m.Package.Version, "profile", cfg.Profile)

	runner := command.NewRunner(command.NewExecutor())

	var server *inspect.Server
	if cfg.Serve {
		server = inspect.NewServer()
		go func() {
			if err := server.Start(cfg.Port); err != nil {
				output.Error("inspection server: %v", err)
				os.Exit(1)
			}
		}()
	}

	generate := func(ctx context.Context) error {
		start := time.Now()

		tc := compiler.New()
		if err := tc.Setup(ctx, m, cfg.Profile, runner); err != nil {
			return err
		}

		planner, err := build.NewPlanner(m, cfg.Profile, tc, runner, cfg.Jobs)
		if err != nil {
			return err
		}
		wrote, err := planner.Generate(ctx)
		if err != nil {
			return err
		}

		output.PrintSummary(output.Summary{
			Profile:     cfg.Profile,
			OutDir:      planner.OutDir(),
			Targets:     len(planner.Graph().TargetNames()),
			TestTargets: planner.TestTargetCount(),
			Elapsed:     time.Since(start),
			Regenerated: wrote,
		})

		if server != nil {
			publishSnapshot(ctx, server, planner.Graph(), m, cfg)
		}
		return nil
	}

	if err := generate(ctx); err != nil {
		if !cfg.Watch {
			return err
		}
		// Watch mode keeps going; the next change may fix the project.
		output.Error("%v", err)
	}

	if cfg.Watch {
		return watchLoop(ctx, cfg, m, generate)
	}
	if cfg.Serve {
		select {} // serve until interrupted
	}
	return nil
}

func publishSnapshot(ctx context.Context, server *inspect.Server, g *graph.Graph, m *manifest.Manifest, cfg *config.Config) {
	server.SetSnapshot(inspect.NewSnapshot(g, inspect.Status{
		Package: m.Package.Name,
		Profile: cfg.Profile,
		OutDir:  m.Dir(),
		RunID:   logging.RunID(ctx),
	}))
}

// watchLoop regenerates the build files whenever the debounced watcher
// reports changes. Manifest edits reload the manifest first.
func watchLoop(ctx context.Context, cfg *config.Config, m *manifest.Manifest, generate func(context.Context) error) error {
	pw, err := watcher.NewProjectWatcher(m)
	if err != nil {
		return err
	}
	if err := pw.Start(ctx); err != nil {
		return err
	}
	defer pw.Stop()

	deb := watcher.NewDebouncer(pw.Events(), 200*time.Millisecond, 2*time.Second)
	deb.Start(ctx)

	logging.InfoContext(ctx, "watching for changes", "dir", m.SrcDir())

	for event := range deb.Output() {
		runCtx := logging.WithRunID(ctx, logging.NewRunID())
		logging.DebugContext(runCtx, "change detected",
			"type", fmt.Sprint(event.Type), "files", len(event.Paths))

		if event.Type == watcher.ChangeTypeManifest {
			reloaded, err := manifest.Load(m.Path)
			if err != nil {
				output.Error("%v", err)
				continue
			}
			*m = *reloaded
		}

		if err := generate(runCtx); err != nil {
			output.Error("%v", err)
		}
	}
	return nil
}
