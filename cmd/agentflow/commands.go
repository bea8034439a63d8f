package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/adapters/httpapi"
	"github.com/stn/agent-stream-app/internal/app/bootstrap"
	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/config"
	"github.com/stn/agent-stream-app/internal/infrastructure/logging"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentflow",
		Short:        "Agent flow editor backend",
		Long:         "agentflow stores agent flows, repairs them against the agent catalog and serves them to the flow editor.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newAgentsCommand())
	rootCmd.AddCommand(newFlowsCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// openApp loads the configuration and wires the application. CLI commands log
// warnings only; serve logs at the configured level.
func openApp(ctx context.Context, quiet bool) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if quiet {
		level = "warn"
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, logger)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentflow %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		},
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flow API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()
			defer func() { _ = app.Logger.Sync() }()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			httpapi.Version = Version
			router := httpapi.NewRouter(httpapi.Deps{
				Flows:    app.Flows,
				Configs:  app.Configs,
				Registry: app.Registry,
				Logger:   app.Logger,
			})
			app.Logger.Info("starting agentflow", zap.String("version", Version), zap.String("store", app.Config.Store))
			return httpapi.Serve(ctx, addr, router, app.Config.Server.ShutdownTimeout, app.Logger, app.Registry.Close)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default: AGENTFLOW_HTTP_ADDR)")
	return cmd
}

func newAgentsCommand() *cobra.Command {
	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect the agent catalog",
	}
	agentsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List agent definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			defs, err := app.Flows.Definitions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(defs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No agent definitions found in "+app.Config.CatalogDir))
				return nil
			}
			for _, name := range defs.Names() {
				def := defs[name]
				fmt.Fprintf(out, "%s %s\n", titleStyle.Render(name), dimStyle.Render(def.Path))
				fmt.Fprintf(out, "  %s %s  %s %s\n",
					labelStyle.Render("in:"), strings.Join(def.Inputs, ", "),
					labelStyle.Render("out:"), strings.Join(def.Outputs, ", "))
				if keys := def.DefaultConfig.Keys(); len(keys) > 0 {
					fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("config:"), strings.Join(keys, ", "))
				}
			}
			return nil
		},
	})
	return agentsCmd
}

func newFlowsCommand() *cobra.Command {
	flowsCmd := &cobra.Command{
		Use:   "flows",
		Short: "Manage stored flows",
	}
	flowsCmd.AddCommand(newFlowsListCommand())
	flowsCmd.AddCommand(newFlowsShowCommand())
	flowsCmd.AddCommand(newFlowsImportCommand())
	flowsCmd.AddCommand(newFlowsRenameCommand())
	flowsCmd.AddCommand(newFlowsRemoveCommand())
	flowsCmd.AddCommand(newFlowsCheckCommand())
	return flowsCmd
}

func newFlowsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			flows, err := app.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(flows) == 0 {
				fmt.Fprintln(out, "No flows found.")
				return nil
			}
			for _, f := range flows {
				fmt.Fprintf(out, "%s %s\n", titleStyle.Render(f.Name),
					dimStyle.Render(fmt.Sprintf("%d nodes, %d edges", len(f.Nodes), len(f.Edges))))
			}
			return nil
		},
	}
}

func newFlowsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a flow as the editor loads it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Flows.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(res.Flow.Name))
			for _, n := range res.Flow.Nodes {
				state := statusEnabled.Render("enabled")
				if !n.Data.Enabled {
					state = statusDisabled.Render("disabled")
				}
				fmt.Fprintf(out, "  %s %s [%s]\n", n.ID, n.Data.Name, state)
				keys := make([]string, 0, len(n.Data.Config))
				for k := range n.Data.Config {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "    %s %v\n", labelStyle.Render(k+":"), n.Data.Config[k].Interface())
				}
			}
			for _, e := range res.Flow.Edges {
				fmt.Fprintf(out, "  %s -> %s\n",
					endpoint(e.Source, e.SourceHandle), endpoint(e.Target, e.TargetHandle))
			}
			writeRepairs(out, res)
			return nil
		},
	}
}

func newFlowsImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Import a JSON or YAML flow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := app.Flows.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d nodes, all disabled)\n", f.Name, len(f.Nodes))
			return nil
		},
	}
}

func newFlowsRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a flow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			name, err := app.Flows.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], name)
			return nil
		},
	}
}

func newFlowsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a flow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Flows.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newFlowsCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [name]",
		Short: "Report edges and nodes that loading would repair",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			results := map[string]*dto.LoadResult{}
			if len(args) == 1 {
				res, err := app.Flows.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results[args[0]] = res
			} else if results, err = app.Flows.LoadAll(cmd.Context()); err != nil {
				return err
			}

			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				res := results[name]
				if res.Clean() {
					fmt.Fprintf(out, "%s %s\n", titleStyle.Render(name), statusEnabled.Render("ok"))
					continue
				}
				fmt.Fprintf(out, "%s %s\n", titleStyle.Render(name), statusWarn.Render("needs repair"))
				writeRepairs(out, res)
			}
			return nil
		},
	}
}
