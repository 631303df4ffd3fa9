package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xmedia/internal/app"
	"github.com/ibeckermayer/xmedia/internal/scraper"
)

func extractCommand() *cobra.Command {
	var (
		htmlFile string
		location string
		selector string
		index    int
		dump     bool
		open     bool
		noAPI    bool
		noVideo  bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "extract [post-url]",
		Short: "Extract media for one activated element",
		Long: `Extract media for one activated element of a post.

With a post URL, the post is opened in a browser and the --index-th match of
--select is marked as the activated element. With --html, a saved snapshot is
used instead; --select picks the element, or the marked one if unset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if htmlFile == "" && len(args) == 0 {
				return errors.New("a post URL or --html is required")
			}

			a, err := newApp(noCache)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := app.ExtractOptions{
				Target: scraper.Target{Selector: selector, Index: index},
				Dump:   dump,
				NoAPI:  noAPI,
			}
			if noVideo {
				o := a.Config().Extraction.Options
				o.IncludeVideoElements = false
				o.FallbackToVideoAPI = false
				opts.Options = &o
			}

			var report *app.Report
			if htmlFile != "" {
				data, err := os.ReadFile(htmlFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", htmlFile, err)
				}
				report, err = a.ExtractHTML(cmd.Context(), string(data), location, opts)
				if err != nil {
					return err
				}
			} else {
				report, err = a.ExtractLive(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
			}

			out, err := json.MarshalIndent(report.Outcome, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if report.OutcomePath != "" {
				logrus.Infof("Outcome saved to: %s", report.OutcomePath)
			}
			if report.SnapshotPath != "" {
				logrus.Infof("Snapshot saved to: %s", report.SnapshotPath)
			}

			if !report.Outcome.Succeeded {
				return errors.New(report.Outcome.ErrorMessage)
			}

			if open {
				i := report.Outcome.ActivatedIndex
				if i < 0 || i >= len(report.Outcome.Items) {
					i = 0
				}
				return browser.OpenURL(report.Outcome.Items[i].SourceURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlFile, "html", "", "extract from a saved HTML snapshot instead of a live page")
	cmd.Flags().StringVar(&location, "location", "", "URL the snapshot was captured from")
	cmd.Flags().StringVar(&selector, "select", "", "CSS selector of the activated element")
	cmd.Flags().IntVar(&index, "index", 0, "which match of --select is activated")
	cmd.Flags().BoolVar(&dump, "dump", false, "save the outcome and snapshot to the cache directory")
	cmd.Flags().BoolVar(&open, "open", false, "open the activated media in the default browser")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "skip the API and resolve from the DOM only")
	cmd.Flags().BoolVar(&noVideo, "no-video", false, "skip video elements and video resolution")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not read or write the media cache")

	return cmd
}
