package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/cachewarden/internal/profile"
	"github.com/hrygo/cachewarden/server"
	"github.com/hrygo/cachewarden/store"
	redisdb "github.com/hrygo/cachewarden/store/db/redis"
)

const version = "0.2.0"

var rootCmd = &cobra.Command{
	Use:   "cachewarden",
	Short: "Memory-governed cache service in front of a capacity-limited Redis store",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		driver, err := redisdb.New(instanceProfile)
		if err != nil {
			slog.Error("failed to connect to store", "error", err)
			os.Exit(1)
		}

		cacheStore := store.New(driver, instanceProfile)
		srv := server.NewServer(instanceProfile, cacheStore)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			slog.Info("cachewarden started", "version", version, "addr", instanceProfile.Addr, "port", instanceProfile.Port, "mode", instanceProfile.Mode)
			return srv.Start(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			slog.Error("server exited with error", "error", err)
			os.Exit(1)
		}
		slog.Info("cachewarden stopped")
	},
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the admin server")
	rootCmd.PersistentFlags().Int("port", 8232, "binding port for the admin server")

	if err := viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("cachewarden")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
