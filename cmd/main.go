package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/pulseboard/pulseboard/internal/server"
	"github.com/pulseboard/pulseboard/internal/version"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pulseboard",
		Short: "Pulseboard dashboard backend",
		Long: `Pulseboard polls self-hosted and cloud services through a uniform adapter
layer and serves their state to dashboard widgets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewIntegrationsCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			config, err := LoadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := BuildDependencies(ctx, config)
			if err != nil {
				return err
			}

			app := server.NewHTTPServer(ctx, server.HTTPServerDependencies{
				DashboardController: deps.DashboardController,
			})

			errCh := make(chan error, 1)

			go func() {
				log.Info().Str("address", config.HTTPAddress).Msg("starting HTTP server")

				errCh <- app.Listen(config.HTTPAddress)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Info().Msg("shutting down")

				return app.Shutdown()
			}
		},
	}
}

func NewIntegrationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "integrations",
		Short: "Print the integration catalog",
		Run: func(cmd *cobra.Command, args []string) {
			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

			fmt.Fprintln(writer, "TYPE\tNAME\tAUTH\tMETRICS\tACTIONS\tCAPABILITIES")

			for _, params := range integrationRegisterParams {
				schema := params.Schema

				implemented := 0
				for _, capability := range schema.Capabilities {
					if capability.Implemented {
						implemented++
					}
				}

				fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%d\t%d/%d\n",
					schema.ID, schema.Name, schema.AuthVariant,
					len(schema.Metrics), len(schema.Actions),
					implemented, len(schema.Capabilities))
			}

			writer.Flush()
		},
	}
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()

			fmt.Printf("pulseboard %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
		},
	}
}
