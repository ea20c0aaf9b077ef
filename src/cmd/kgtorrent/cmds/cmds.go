// Package cmds implements the kgtorrent command line.
package cmds

import (
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/cmdutil"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/config"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/fetch"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/pctx"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/pipeline"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/store"
	"github.com/spf13/cobra"
)

// RootCmd returns the kgtorrent root command with the init, refresh and
// download subcommands attached.
func RootCmd() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:   "kgtorrent",
		Short: "Build the KGTorrent dataset from a Meta Kaggle dump.",
		Long: `KGTorrent loads the Meta Kaggle CSV dump into a relational database and
downloads the Jupyter notebooks it references into a local archive.

Configuration comes from KGTORRENT_* environment variables; the API download
strategy additionally needs KAGGLE_USERNAME and KAGGLE_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.InitCLILogger()
			if verbose {
				log.SetLevel(log.DebugLevel)
				cmdutil.PrintErrorStacks = true
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and error stacks.")

	var strategy string
	var matching []string
	addDownloadFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&strategy, "strategy", "s", string(fetch.SelectorHTTP),
			"Download strategy: API, HTTP or SKIP. Notebooks downloaded via the Kaggle API miss code cell outputs; SKIP skips the download step completely.")
		cmd.Flags().StringArrayVarP(&matching, "matching", "m", nil,
			"Notebook identifier (author/slug) to download; repeatable. Only matching notebooks in the dataset are downloaded.")
	}

	// The subcommand name is the pipeline command; ParseCommand rejects
	// anything outside the closed set before any stage runs.
	run := func(cobraCmd *cobra.Command, _ []string) error {
		command, err := pipeline.ParseCommand(cobraCmd.Name())
		if err != nil {
			return err
		}
		sel, err := fetch.ParseSelector(strategy)
		if err != nil {
			return err
		}
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		ctx := pctx.Background("kgtorrent")
		st, err := store.New(ctx, cfg.StoreURL, cfg.StorePassword)
		if err != nil {
			return err
		}
		// Close is idempotent; the pipeline normally closes the store
		// itself before the download stage.
		defer st.Close() //nolint:errcheck
		return pipeline.New(cfg, st).Run(ctx, pipeline.Request{
			Command:  command,
			Strategy: sel,
			Matching: matching,
		})
	}

	initCmd := &cobra.Command{
		Use:   string(pipeline.CommandInit),
		Short: "Create the KGTorrent database from scratch and download its notebooks.",
		Run:   cmdutil.RunFixedArgs(0, run),
	}
	refreshCmd := &cobra.Command{
		Use:   string(pipeline.CommandRefresh),
		Short: "Rebuild the KGTorrent database from a newer Meta Kaggle version.",
		Run:   cmdutil.RunFixedArgs(0, run),
	}
	downloadCmd := &cobra.Command{
		Use:   string(pipeline.CommandDownload),
		Short: "Only download the notebooks of an already initialized KGTorrent database.",
		Run:   cmdutil.RunFixedArgs(0, run),
	}
	for _, cmd := range []*cobra.Command{initCmd, refreshCmd, downloadCmd} {
		addDownloadFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
	return rootCmd
}
