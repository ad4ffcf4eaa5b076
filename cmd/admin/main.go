package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"altessa/internal/auth"
	"altessa/internal/config"
	"altessa/internal/database"
	"altessa/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var timeout time.Duration

// rootCmd is the operator tool for an Altessa deployment
var rootCmd = &cobra.Command{
	Use:   "altessa-admin",
	Short: "Operate an Altessa deployment",
	Long: `Maintenance commands for the Altessa storefront backend.

Available commands:
  migrate       - Apply the database schema
  create-admin  - Create an administrator account
  setup-storage - Create the media buckets and public read policy`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("APP_ENV") != "production" {
			_ = godotenv.Load()
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE:  runMigrate,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account in the admin_users table.

The email is lowercased and the password hashed with bcrypt. The account can
then sign in through POST /api/v1/auth/login.`,
	RunE: runCreateAdmin,
}

var setupStorageCmd = &cobra.Command{
	Use:   "setup-storage",
	Short: "Create the media buckets and public read policy",
	RunE:  runSetupStorage,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	createAdminCmd.Flags().String("email", "", "Administrator email (required)")
	createAdminCmd.Flags().String("password", "", "Administrator password (required)")
	createAdminCmd.Flags().String("name", "", "Display name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(setupStorageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "database schema is up to date")
	return nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	user, err := auth.CreateAdmin(ctx, auth.NewPostgresUserStore(db), email, password, name)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
	return nil
}

func runSetupStorage(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := logger.Must(cfg.App.Env, cfg.App.Debug)
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := database.NewMinIOClient(cfg.MinIO)
	if err != nil {
		return err
	}
	if err := database.EnsureBuckets(ctx, client, log, cfg.MinIO.BucketMedia, cfg.MinIO.BucketRenders); err != nil {
		return err
	}
	log.Info("storage ready",
		zap.String("media", cfg.MinIO.BucketMedia),
		zap.String("renders", cfg.MinIO.BucketRenders),
	)
	return nil
}
