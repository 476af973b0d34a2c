package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/internal/version"
	"github.com/murmurchat/murmur/server"
	"github.com/murmurchat/murmur/store"
	"github.com/murmurchat/murmur/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "murmur",
		Short: `A small chat service with a public live feed of conversations.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			configFile := viper.GetString("config")
			if configFile == "" {
				return nil
			}
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return errors.Wrapf(err, "failed to read config %s", configFile)
			}
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:               viper.GetString("mode"),
				Addr:               viper.GetString("addr"),
				Port:               viper.GetInt("port"),
				Data:               viper.GetString("data"),
				Driver:             viper.GetString("driver"),
				DSN:                viper.GetString("dsn"),
				InstanceURL:        viper.GetString("instance-url"),
				Secret:             viper.GetString("secret"),
				AIProvider:         viper.GetString("ai-provider"),
				AIAPIKey:           viper.GetString("ai-api-key"),
				AIBaseURL:          viper.GetString("ai-base-url"),
				AIModel:            viper.GetString("ai-model"),
				AIHistoryTurns:     viper.GetInt("ai-history-turns"),
				EmbeddingBaseURL:   viper.GetString("embedding-base-url"),
				EmbeddingModel:     viper.GetString("embedding-model"),
				FeedLimit:          viper.GetInt("feed-limit"),
				KeepInputOnFailure: viper.GetBool("keep-input-on-failure"),
				MessagesPerMinute:  viper.GetInt("messages-per-minute"),
				S3Endpoint:         viper.GetString("s3-endpoint"),
				S3Region:           viper.GetString("s3-region"),
				S3Bucket:           viper.GetString("s3-bucket"),
				S3AccessKey:        viper.GetString("s3-access-key"),
				S3SecretKey:        viper.GetString("s3-secret-key"),
				Version:            version.GetCurrentVersion(viper.GetString("mode")),
			}
			if err := viper.UnmarshalKey("oauth", &instanceProfile.OAuthProviders); err != nil {
				slog.Error("failed to read oauth providers", "error", err)
				return
			}
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid profile", "error", err)
				return
			}

			ctx, cancel := context.WithCancel(context.Background())
			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to create db driver", "error", err)
				return
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			if err := storeInstance.Migrate(ctx); err != nil {
				cancel()
				slog.Error("failed to migrate", "error", err)
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			// The default signal sent by the `kill` command is SIGTERM,
			// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)

			if err := s.Start(ctx); err != nil {
				cancel()
				slog.Error("failed to start server", "error", err)
				return
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("ai-provider", "gemini")
	viper.SetDefault("ai-history-turns", 6)
	viper.SetDefault("feed-limit", 50)
	viper.SetDefault("s3-region", "us-east-1")

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a config file, used for OAuth providers")
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver: sqlite, mysql or postgres")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("instance-url", "", "the public url of your instance, used for OAuth redirects and RSS links")
	flags.String("secret", "", "secret used to sign access tokens")
	flags.String("ai-provider", "gemini", `AI provider, can be "gemini" or "openai"`)
	flags.String("ai-api-key", "", "API key of the AI provider; chat is disabled without it")
	flags.String("ai-base-url", "", "base URL of an OpenAI-compatible endpoint")
	flags.String("ai-model", "", "model used for replies and summaries")
	flags.Int("ai-history-turns", 6, "prior transcript messages sent as context")
	flags.String("embedding-base-url", "", "OpenAI-compatible embeddings endpoint; enables feed search")
	flags.String("embedding-model", "", "embedding model")
	flags.Int("feed-limit", 50, "number of recent entries in the feed")
	flags.Bool("keep-input-on-failure", false, "keep the composer text when an exchange fails")
	flags.Int("messages-per-minute", 0, "message exchanges allowed per client address and minute, 0 for no limit")
	flags.String("s3-endpoint", "", "S3-compatible endpoint for the document archive")
	flags.String("s3-region", "us-east-1", "S3 region")
	flags.String("s3-bucket", "", "S3 bucket; enables the document archive")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("murmur")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Murmur %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}
	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	if profile.Addr == "" {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	// A missing .env file is fine; the environment and flags still apply.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
