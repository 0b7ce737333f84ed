// Package cli is the docchat command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"docchat/internal/chunker"
	"docchat/internal/client"
	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/helper"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	serverURL string
	logLevel  string
	// jsonOutput switches listing commands to indented json.
	jsonOutput bool

	cfg *config.Config
)

var rootCMD = &cobra.Command{
	Use:           "docchat",
	Short:         "Chat with your documents",
	Long:          `Upload documents, index them on the server or on the client, and ask grounded questions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(cfgPath); err != nil {
			return err
		}
		if serverURL != "" {
			cfg.Client.ServerURL = serverURL
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		helper.InitLogger(cfg.Log.Level, cfg.Log.Console, os.Stderr)
		return nil
	},
}

func init() {
	rootCMD.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "config file")
	rootCMD.PersistentFlags().StringVar(&serverURL, "server", "", "server base url, overrides client.server_url")
	rootCMD.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides log.level")
	rootCMD.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print listings as json")
}

// Execute runs the root command until it returns or the process is signalled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCMD.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func apiClient() *client.APIClient {
	return client.NewAPIClient(cfg.Client.ServerURL, cfg.Client.Timeout)
}

// newReconciler wires the client side: store, local indexer and REST client.
func newReconciler() (*client.Reconciler, *client.APIClient, error) {
	store, err := client.OpenStore(cfg.Client)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, err
	}
	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, nil, err
	}
	c := apiClient()
	return client.NewReconciler(c, store, client.NewLocalIndexer(ch, embedder, c)), c, nil
}
