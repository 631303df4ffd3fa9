package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the media cache",
	}
	cmd.AddCommand(cachePruneCommand(), cacheShowCommand(), cacheHistoryCommand())
	return cmd
}

func cachePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop cache entries older than cache.max_age_hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Prune(cmd.Context())
		},
	}
}

func cacheShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <post-id>",
		Short: "Print the cached media of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.Store().Entry(args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("post %s is not cached", args[0])
			}
			out, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func cacheHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent extractions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Store().History(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tPOST\tSOURCE\tITEMS\tMS\tOK")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%t\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.PostID, e.SourceKind, e.ItemCount, e.ElapsedMs, e.Succeeded)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}
