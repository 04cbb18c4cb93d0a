package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/folio-works/portfolio-api/internal/app"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/spf13/cobra"
)

var (
	syncForce   bool
	pullMode    string
	pullImages  bool
	historyMax  int
	restoreHash string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload pending images and publish data.json",
	Long: `Resolve every local image reference by uploading it to the configured blob host,
then commit data.json to GitHub. Nothing is committed when the content matches
the last published run unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			ctx, cancel := context.WithTimeout(ctx, a.Config.Sync.TimeoutDuration())
			defer cancel()

			run, err := a.Sync.Sync(ctx, domain.SyncTriggerCLI, syncForce)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d images uploaded, %d references cleared",
				run.Status, run.ImagesUploaded, run.RefsCleared)
			if run.CommitSHA != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ", commit %s", run.CommitSHA)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending changes and recent sync runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			status, err := a.Sync.Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "content hash:    %s\n", status.ContentHash)
			fmt.Fprintf(out, "pending changes: %t\n", status.PendingChanges)
			fmt.Fprintf(out, "pending images:  %d\n", status.PendingImages)
			if status.LastPublished != nil {
				fmt.Fprintf(out, "last published:  %s (%s)\n",
					status.LastPublished.StartedAt.Format(time.RFC3339), status.LastPublished.CommitSHA)
			}

			page, err := a.Sync.Runs(ctx, 1, 10, "")
			if err != nil {
				return err
			}
			runs, _ := page.Data.([]domain.SyncRunDTO)
			if len(runs) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tTRIGGER\tSTATUS\tIMAGES\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					r.StartedAt.Format(time.RFC3339), r.Trigger, r.Status, r.ImagesUploaded, r.Error)
			}
			return tw.Flush()
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the current site data as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			data, err := a.Content.Export(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import the deployed data.json into the database",
	Long: `Fetch data.json from the deployed site (or the GitHub repository when no site URL
is configured) and import it. --mode seed only fills documents that were never
saved; --mode replace overwrites all of them. --images also copies the images
shown on every deployed project page into the local image store.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode := domain.ImportMode(pullMode)
		if mode != domain.ImportSeed && mode != domain.ImportReplace {
			return fmt.Errorf("invalid --mode %q: must be seed or replace", pullMode)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Sync.Pull(ctx, mode)
			if err != nil {
				return err
			}
			if !pullImages {
				return printJSON(cmd.OutOrStdout(), result)
			}
			scraped, err := a.Sync.ScrapeImages(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"import": result,
				"images": scraped,
			})
		})
	},
}

var migrateImagesCmd = &cobra.Command{
	Use:   "migrate-images",
	Short: "Upload data URLs left in stored documents without publishing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Sync.MigrateImages(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var repairRefsCmd = &cobra.Command{
	Use:   "repair-refs",
	Short: "Clear references to pending images that no longer exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Sync.RepairReferences(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List published versions, or restore one with --restore",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if restoreHash != "" {
				result, err := a.Sync.Restore(ctx, restoreHash)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}

			versions, err := a.Sync.Versions(historyMax)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HASH\tDATE\tMESSAGE")
			for _, v := range versions {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Hash[:12], v.Timestamp.Format(time.RFC3339), v.Message)
			}
			return tw.Flush()
		})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "publish even when content is unchanged")
	pullCmd.Flags().StringVar(&pullMode, "mode", string(domain.ImportSeed), "import mode: seed or replace")
	pullCmd.Flags().BoolVar(&pullImages, "images", false, "also copy images from the deployed project pages")
	historyCmd.Flags().IntVarP(&historyMax, "limit", "n", 20, "number of versions to list")
	historyCmd.Flags().StringVar(&restoreHash, "restore", "", "restore the version with this commit hash")
}
