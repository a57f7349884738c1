package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go.pilab.hu/codegrant/config"
	"go.pilab.hu/codegrant/mongodb"
)

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "Operate on stored authorization codes",
}

var codesPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired authorization codes from MongoDB",
	Long: `Removes authorization code records whose expiry has passed. The TTL
index already garbage-collects these in the background; purge forces
the sweep, which is mostly useful after lowering the code TTL or when
reclaiming space on a test database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			return fmt.Errorf("connecting to mongodb: %w", err)
		}
		defer mongodb.CloseMongoDB(context.Background())

		repo, err := mongodb.NewAuthCodeRepository(ctx, mongodb.GetDB())
		if err != nil {
			return fmt.Errorf("opening code repository: %w", err)
		}
		if err := repo.DeleteExpiredAuthCodes(ctx); err != nil {
			return fmt.Errorf("purging expired codes: %w", err)
		}

		appLogger.Info(ctx, "Expired authorization codes purged", map[string]any{
			"database": cfg.MongoDBName,
		})
		cmd.Println("Expired authorization codes purged.")
		return nil
	},
}

func init() {
	codesCmd.AddCommand(codesPurgeCmd)
	rootCmd.AddCommand(codesCmd)
}
