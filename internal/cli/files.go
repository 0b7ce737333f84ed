package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"docchat/internal/api"
	"docchat/internal/client"
	"docchat/internal/helper"

	"github.com/spf13/cobra"
)

var uploadWait bool

var uploadCMD = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload files and index them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, c, err := newReconciler()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var ids []string
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			res, err := rec.Upload(ctx, filepath.Base(path), data)
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}
			where := "server"
			if res.UseBrowserStorage {
				where = "client"
			}
			fmt.Fprintf(out, "%s\t%s\t%s\t(stored on %s)\n", res.FileID, res.Filename, res.IndexingStatus, where)
			if res.Warning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", res.Warning)
			}
			if res.IndexErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "indexing failed: %v\n", res.IndexErr)
			}
			ids = append(ids, res.FileID)
		}

		if !uploadWait {
			return nil
		}
		_, err = client.NewPoller(c, cfg.Client.PollInterval).Watch(ctx, ids, func(st api.FileStatusResponse) {
			fmt.Fprintf(out, "%s\t%s\t%s\n", st.FileID, st.Status, st.Message)
		})
		return err
	},
}

var filesCMD = &cobra.Command{
	Use:   "files",
	Short: "List files known to the server or held by this client",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, err := newReconciler()
		if err != nil {
			return err
		}
		files, err := rec.Catalog(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			helper.PrettyPrint(cmd.OutOrStdout(), files)
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE ID\tNAME\tSTATUS\tCHUNKS\tSTORED\tUPLOADED")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", f.FileID, f.OriginalFilename, f.IndexingStatus,
				f.ChunkCount, f.StorageLocation, f.UploadedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var statusWatch bool

var statusCMD = &cobra.Command{
	Use:   "status FILE_ID...",
	Short: "Show indexing status",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		out := cmd.OutOrStdout()
		if statusWatch {
			_, err := client.NewPoller(c, cfg.Client.PollInterval).Watch(cmd.Context(), args, func(st api.FileStatusResponse) {
				fmt.Fprintf(out, "%s\t%s\t%s\n", st.FileID, st.Status, st.Message)
			})
			return err
		}
		for _, id := range args {
			st, err := c.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", st.FileID, st.Status, st.Message)
		}
		return nil
	},
}

var deleteCMD = &cobra.Command{
	Use:   "delete FILE_ID...",
	Short: "Delete files on the server and the client",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, err := newReconciler()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := rec.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

var reindexCMD = &cobra.Command{
	Use:   "reindex FILE_ID...",
	Short: "Retry indexing of failed or forgotten files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, err := newReconciler()
		if err != nil {
			return err
		}
		for _, id := range args {
			status, err := rec.Reindex(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("reindex %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, status)
		}
		return nil
	},
}

var reconcileWatch bool

var reconcileCMD = &cobra.Command{
	Use:   "reconcile",
	Short: "Index client-held files the server has not finished",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, err := newReconciler()
		if err != nil {
			return err
		}
		if reconcileWatch {
			return rec.Run(cmd.Context(), cfg.Client.ReconcileInterval)
		}
		rep, err := rec.ReconcileOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked %d, indexed %d, failed %d\n", rep.Checked, rep.Indexed, rep.Failed)
		return nil
	},
}

func init() {
	uploadCMD.Flags().BoolVarP(&uploadWait, "wait", "w", false, "wait until indexing finishes")
	statusCMD.Flags().BoolVarP(&statusWatch, "watch", "w", false, "poll until indexing finishes")
	reconcileCMD.Flags().BoolVar(&reconcileWatch, "watch", false, "keep reconciling every client.reconcile_interval")
	rootCMD.AddCommand(uploadCMD, filesCMD, statusCMD, deleteCMD, reindexCMD, reconcileCMD)
}
