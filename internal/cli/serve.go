package cli

import (
	"docchat/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Server.DebugRoutes {
			gin.SetMode(gin.ReleaseMode)
		}
		ctx := cmd.Context()
		a, err := app.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close vector index")
			}
		}()
		return a.Server.Run(ctx, cfg.Server.Addr)
	},
}

func init() {
	rootCMD.AddCommand(serveCMD)
}
