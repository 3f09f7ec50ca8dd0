package main

import (
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hypergrep/pkg/coordinator"
	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/serve"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

var (
	serveEngine  string
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON server on stdin and stdout",
	Long: `Run hypergrep as a long-lived server that accepts grep and check requests
on stdin and writes responses to stdout, one JSON document per line.

Each grep request compiles its own pattern set. The process runs until
stdin closes, a close request arrives or it receives SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveEngine, "engine", matcher.EngineAuto, "Matching engine: auto, hyperscan, portable")
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "j", 0, "Number of files scanned concurrently (0 = one per CPU)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())
	eng, err := matcher.New(serveEngine, matcher.WithLogger(logger))
	if err != nil {
		return usageError("%w", err)
	}

	coord := coordinator.New(eng,
		coordinator.WithScanConfig(types.DefaultScanConfig()),
		coordinator.WithWorkers(serveWorkers),
		coordinator.WithLogger(logger),
	)
	defer coord.Close()

	srv := serve.NewServer(coord, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(commandContext(cmd))
}
