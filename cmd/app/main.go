package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/datatree/internal"
	pkgconfig "github.com/starford/datatree/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if mode := cmd.String("mode"); mode != "" {
		cfg.Trees.Mode = mode
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --mode: %w", err)
		}
	}
	if dir := cmd.String("dir"); dir != "" {
		cfg.Trees.Dir = dir
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunTUI(ctx, opts...)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func search(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: search <term>")
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Search(ctx, cmd.String("tree"), cmd.Args().First(), opts...)
}

func folders(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ListFolders(ctx, cmd.String("tree"), opts...)
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Migrate(ctx, opts...)
}

func main() {
	treeFlag := &cli.StringFlag{
		Name:  "tree",
		Usage: "Tree instance name (defaults to the first one)",
	}

	cmd := &cli.Command{
		Name:    "datatree",
		Usage:   "Hierarchical annotation trees stored as JSON, with image attachments",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "mode",
				Usage:   "Tree mode: single or dual (overrides config)",
				Sources: cli.EnvVars("DATATREE_MODE"),
			},
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "Directory holding the tree files (overrides config)",
				Sources: cli.EnvVars("DATATREE_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API, event stream and MCP endpoint",
				Action: serve,
			},
			{
				Name:   "tui",
				Usage:  "Browse and edit the trees in the terminal",
				Action: runTUI,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdin/stdout",
				Action: runMCP,
			},
			{
				Name:      "search",
				Usage:     "Print folders and entries whose name contains a term",
				ArgsUsage: "<term>",
				Flags:     []cli.Flag{treeFlag},
				Action:    search,
			},
			{
				Name:   "folders",
				Usage:  "Print every folder path",
				Flags:  []cli.Flag{treeFlag},
				Action: folders,
			},
			{
				Name:   "migrate",
				Usage:  "Rewrite tree files holding legacy string entries",
				Action: migrate,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
