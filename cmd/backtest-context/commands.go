package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsxjacky/backtest-context/internal/config"
	"github.com/opsxjacky/backtest-context/internal/data"
	"github.com/opsxjacky/backtest-context/internal/factory"
	"github.com/opsxjacky/backtest-context/internal/locator"
	"github.com/opsxjacky/backtest-context/internal/logger"
	"github.com/opsxjacky/backtest-context/pkg/types"
)

type buildOptions struct {
	backend   string
	format    string
	envFile   string
	fullIndex bool
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "backtest-context",
		Short:         "Build normalized backtest contexts from storage locators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newParseCommand())
	cmd.AddCommand(newBuildCommand())
	return cmd
}

func newParseCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "parse <locator>",
		Short: "Decompose a storage locator into uri, path and params",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(cmd.OutOrStdout(), format, locator.Parse(args[0]))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	return cmd
}

func newBuildCommand() *cobra.Command {
	opts := buildOptions{}
	cmd := &cobra.Command{
		Use:   "build <locator>",
		Short: "Load a context through a backend and print it normalized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "yaml",
		"storage backend: "+strings.Join(data.Kinds(), ", "))
	cmd.Flags().StringVarP(&opts.format, "format", "f", "yaml", "output format: yaml or json")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "settings file (defaults to ./.env when present)")
	cmd.Flags().BoolVar(&opts.fullIndex, "full-index", false, "print every index timestamp")
	return cmd
}

func runBuild(cmd *cobra.Command, storage string, opts buildOptions) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	base := logger.New(cfg.LogLevel, cmd.ErrOrStderr())

	src, err := data.New(opts.backend, cfg.SourceOptions())
	if err != nil {
		return err
	}

	f, err := factory.New(storage, src,
		factory.WithLogger(base),
		factory.WithLocation(cfg.GetLocation()),
		factory.WithCalendar(cfg.GetCalendar()),
		factory.WithDefaultFrequency(cfg.GetFrequency()),
	)
	if err != nil {
		return err
	}
	defer closeQuietly(f, base)

	ctx, err := f.Build(cmd.Context())
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), opts.format, printable(ctx, opts.fullIndex))
}

func closeQuietly(f *factory.Factory, log zerolog.Logger) {
	if err := f.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close storage")
	}
}

// printable 将上下文转换为可序列化的形式, 索引默认只输出摘要
func printable(ctx types.Context, fullIndex bool) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if t, ok := v.(time.Time); ok {
			out[k] = t.Format(time.RFC3339)
			continue
		}
		out[k] = v
	}

	index := ctx.Index()
	if fullIndex {
		stamps := make([]string, len(index))
		for i, t := range index {
			stamps[i] = t.Format(time.RFC3339)
		}
		out[types.KeyIndex] = stamps
		return out
	}

	summary := map[string]any{"len": len(index)}
	if len(index) > 0 {
		summary["first"] = index[0].Format(time.RFC3339)
		summary["last"] = index[len(index)-1].Format(time.RFC3339)
	}
	out[types.KeyIndex] = summary
	return out
}

func render(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}
