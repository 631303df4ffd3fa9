package main

import (
	"bufio"
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	browseropts "github.com/ibeckermayer/xmedia/internal/browser"
	"github.com/ibeckermayer/xmedia/internal/config"
	"github.com/ibeckermayer/xmedia/internal/store"
)

func openCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache|last>",
		Short:     "Open the config file, the cache directory or the latest outcome dump",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache", "last"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path string
				err  error
			)
			switch args[0] {
			case "config":
				path, err = config.ConfigPath()
			case "cache":
				path, err = config.CacheDir()
			case "last":
				path, err = store.LatestDump(store.DumpOutcomes)
			default:
				return fmt.Errorf("unknown target: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}

			logrus.Infof("Opening %s", path)
			return browser.OpenFile(path)
		},
	}
}

// botTestCommand opens bot.sannysoft.com with the capture browser options to
// audit the browser fingerprint
func botTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "bot-test",
		Short:  "Open bot.sannysoft.com with the capture browser options",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logrus.Info("Opening bot.sannysoft.com with stealth browser options...")

			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), browseropts.Options(false)...)
			defer cancel()

			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			err := chromedp.Run(ctx,
				chromedp.Navigate("https://bot.sannysoft.com"),
				chromedp.WaitVisible("body", chromedp.ByQuery),
			)
			if err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
			_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			return nil
		},
	}
}
