package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/internal/logging"
	"github.com/ZacxDev/video-composer/pkg/videoprocessor"
)

var (
	configPath string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "video-composer",
		Short: "Compose short-form portrait videos from clips, images and audio",
		Long: `video-composer turns a list of clips into one 1080x1920 video for social media.
Each clip is framed by a preset, captioned and branded, then the clips are
joined and image and audio overlays are applied to the result.

Examples:
  # Compose the request described in request.yaml
  video-composer compose -r request.yaml

  # Print the filter graphs and ffmpeg commands without running them
  video-composer graph -r request.yaml

  # Serve the HTTP API
  video-composer serve`,
		SilenceUsage: true,
	}

	composeCmd = &cobra.Command{
		Use:   "compose",
		Short: "Compose a video from a request file",
		Long: fmt.Sprintf(`Compose a video from a YAML or JSON request file.

Supported presets:
%s
Example:
  video-composer compose -r request.yaml -o ./output`, formatSupportedPresets()),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, logger, err := newService(cmd)
			if err != nil {
				return err
			}

			requestPath, _ := cmd.Flags().GetString("request")
			req, err := videoprocessor.LoadRequest(requestPath)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			res, err := svc.Compose(ctx, req)
			if err != nil {
				return err
			}

			logger.Debug().Int("created", res.ArtifactsCreated).Int("deleted", res.ArtifactsDeleted).Msg("artifacts")
			fmt.Println(res.Output)
			return nil
		},
	}

	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Print the compiled stages of a request without running ffmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService(cmd)
			if err != nil {
				return err
			}

			requestPath, _ := cmd.Flags().GetString("request")
			req, err := videoprocessor.LoadRequest(requestPath)
			if err != nil {
				return err
			}

			plans, err := svc.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}

			for _, p := range plans {
				fmt.Printf("# %s (%s)\n", p.Name, p.Kind)
				if p.Graph != "" {
					fmt.Printf("filter_complex: %s\n", p.Graph)
				}
				if len(p.Maps) > 0 {
					fmt.Printf("map: %s\n", strings.Join(p.Maps, " "))
				}
				fmt.Printf("ffmpeg %s\n\n", strings.Join(p.Command, " "))
			}
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the composition HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			return svc.Serve(ctx)
		},
	}

	presetsCmd = &cobra.Command{
		Use:   "presets",
		Short: "List the supported presets",
		Run: func(cmd *cobra.Command, args []string) {
			var rows [][]string
			for _, p := range videoprocessor.Presets() {
				rows = append(rows, []string{
					p.Name,
					strconv.Itoa(p.FontSize),
					strconv.Itoa(p.TextPositionY),
					strconv.FormatBool(p.UsesMask),
				})
			}
			fmt.Println(renderTable(
				[]string{"Preset", "Font size", "Text Y", "Mask"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
		},
	}

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List recent runs recorded by the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService(cmd)
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := svc.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				expires := ""
				if !r.ExpiresAt.IsZero() {
					expires = r.ExpiresAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					r.ID,
					string(r.Status),
					r.OutputName,
					r.CreatedAt.Local().Format(time.DateTime),
					expires,
					r.Error,
				})
			}
			fmt.Println(renderTable(
				[]string{"Run", "Status", "Output", "Created", "Expires", "Error"},
				rows,
				nil,
			))
			return nil
		},
	}
)

func formatSupportedPresets() string {
	var sb strings.Builder
	for _, name := range videoprocessor.GetSupportedPresets() {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	return sb.String()
}

// newService loads the configuration, applies command line overrides and
// initialises logging.
func newService(cmd *cobra.Command) (*videoprocessor.Service, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	if cmd.Flags().Changed("output") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	logger := logging.Init(cfg.LogLevel, verbose, os.Stderr)
	return videoprocessor.New(cfg, logger), logging.WithComponent("cli"), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Compose command flags
	composeCmd.Flags().StringP("request", "r", "", "Request file (YAML or JSON)")
	composeCmd.Flags().StringP("output", "o", "", "Output directory")
	composeCmd.MarkFlagRequired("request")

	// Graph command flags
	graphCmd.Flags().StringP("request", "r", "", "Request file (YAML or JSON)")
	graphCmd.Flags().StringP("output", "o", "", "Output directory")
	graphCmd.MarkFlagRequired("request")

	// Serve command flags
	serveCmd.Flags().IntP("port", "p", 0, "Listen port")
	serveCmd.Flags().StringP("output", "o", "", "Output directory")

	runsCmd.Flags().IntP("limit", "n", 20, "Number of runs to list")

	rootCmd.AddCommand(composeCmd, graphCmd, serveCmd, presetsCmd, runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
