package args

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/markis/gh-chartstream/internal/config"
)

// Commands.
const (
	CommandPlay   = "play"
	CommandParse  = "parse"
	CommandStream = "stream"
	CommandServe  = "serve"
)

var formats = []string{"terminal", "plain", "json", "yaml", "html"}

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Command      string
	// Input is a file path, or "-" for stdin.
	Input        string
	Format       string
	UsePlainText bool
	Wrap         int
	Invalid      bool
	ChartDir     string
	MinDelay     time.Duration
	Jitter       time.Duration
	SSE          bool
	Addr         string
}

// Live reports whether output is written while the stream is still arriving.
func (a Arguments) Live() bool {
	return a.Format == "terminal" || a.Format == "plain"
}

// ParseArgs parses argv into Arguments, taking flag defaults from cfg.
// Commands only record what to do; main runs them.
func ParseArgs(ctx context.Context, cfg config.Config, argv []string) (Arguments, error) {
	args := Arguments{}

	rootCmd := &cobra.Command{
		Use:           "gh-chartstream [command] [flags]",
		Short:         "Render streamed model output with inline Vega-Lite charts",
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&args.Format, "format", cfg.Render.Format, "Output format: "+strings.Join(formats, ", "))
	rootCmd.PersistentFlags().BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg), "Disable markdown rendering")
	rootCmd.PersistentFlags().IntVar(&args.Wrap, "wrap", cfg.Render.Wrap, "Markdown wrap width")
	rootCmd.PersistentFlags().BoolVar(&args.Invalid, "invalid", cfg.Parser.InvalidSegments, "Show malformed chart blocks instead of dropping them")
	rootCmd.PersistentFlags().StringVar(&args.ChartDir, "chart-dir", cfg.Render.ChartDir, "Directory for chart images; empty disables them")

	var instant bool
	playCmd := &cobra.Command{
		Use:   "play <events.ndjson>",
		Short: "Replay a recorded event log with simulated token pacing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandPlay
			args.Input = cmdArgs[0]
			if instant {
				args.MinDelay, args.Jitter = 0, 0
			}
			return nil
		},
	}
	playCmd.Flags().DurationVar(&args.MinDelay, "min-delay", cfg.Playback.MinDelay, "Minimum delay between events")
	playCmd.Flags().DurationVar(&args.Jitter, "jitter", cfg.Playback.Jitter, "Random extra delay between events")
	playCmd.Flags().BoolVar(&instant, "instant", false, "Replay without delays")

	parseCmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Segment a complete buffer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandParse
			args.Input = inputArg(cmdArgs)
			return nil
		},
	}

	streamCmd := &cobra.Command{
		Use:   "stream [file]",
		Short: "Render a live event stream as it arrives",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandStream
			args.Input = inputArg(cmdArgs)
			return nil
		},
	}
	streamCmd.Flags().BoolVar(&args.SSE, "sse", false, "Input is server-sent events rather than NDJSON")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parser over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandServe
			return nil
		},
	}
	serveCmd.Flags().StringVar(&args.Addr, "addr", cfg.Server.Addr, "Listen address")

	rootCmd.AddCommand(playCmd, parseCmd, streamCmd, serveCmd)
	rootCmd.SetArgs(argv)

	// Execute the command
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return Arguments{}, err
	}

	if args.Command == "" {
		return Arguments{}, fmt.Errorf("no command provided; try %s", strings.Join([]string{CommandPlay, CommandParse, CommandStream, CommandServe}, ", "))
	}
	if !slices.Contains(formats, args.Format) {
		return Arguments{}, fmt.Errorf("unknown format %q", args.Format)
	}
	if args.Format == "plain" {
		args.UsePlainText = true
	}

	return args, nil
}

func inputArg(cmdArgs []string) string {
	if len(cmdArgs) > 0 {
		return cmdArgs[0]
	}
	return "-"
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == "plain" {
		return true
	}

	// Check if output is being redirected
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			return true
		}
	}

	// Check for NO_COLOR environment variable
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}

	// Check for TERM=dumb
	if term := os.Getenv("TERM"); term == "dumb" {
		return true
	}

	return false
}
