// Command xmedia extracts the media behind an activated element of an X post.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xmedia/internal/app"
	"github.com/ibeckermayer/xmedia/internal/auth"
	"github.com/ibeckermayer/xmedia/internal/config"
)

var (
	// cfgFile overrides the default config path
	cfgFile string

	// debug forces debug logging for all commands
	debug bool

	rootCmd = &cobra.Command{
		Use:           "xmedia",
		Short:         "Extract media from X posts",
		Long:          `Resolve the images and videos behind a clicked element of an X post, using the API, the page DOM and a local cache.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(extractCommand())
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(loginCommand())
	rootCmd.AddCommand(logoutCommand())
	rootCmd.AddCommand(statusCommand())
	rootCmd.AddCommand(openCommand())
	rootCmd.AddCommand(cacheCommand())
	rootCmd.AddCommand(botTestCommand())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, creating a default one on first run,
// then applies env overrides and the log level
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", cfgFile, err)
		}
	} else {
		cfg, err = config.Load()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// First run
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				logrus.WithError(err).Warn("Could not save default config")
			} else {
				path, _ := config.ConfigPath()
				logrus.Infof("Created default config at: %s", path)
			}
		case err != nil:
			logrus.WithError(err).Warn("Could not load config, using defaults")
			cfg = config.Default()
		}
	}

	cfg.ApplyEnv()
	config.SetLogLevel(cfg.LogLevel)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}

func newAuthManager() (*auth.Manager, error) {
	path, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie store path: %w", err)
	}
	return auth.NewManager(auth.NewCookieStore(path)), nil
}

func newApp(noCache bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	authManager, err := newAuthManager()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, authManager, noCache)
}
