package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/streamsnap/internal/resolver"
	"github.com/andresmejia3/streamsnap/internal/utils"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <stream>",
	Short: "Print the playable media URL for a stream reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		r, err := resolver.New(cfg.Resolver, cfg.YtDlpBin, cfg.YtDlpFormat)
		if err != nil {
			utils.ShowError("Invalid resolver", err, nil)
			return err
		}
		url, err := r.Resolve(cmd.Context(), args[0])
		if err != nil {
			utils.ShowError("Failed to resolve stream", err, nil)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&flagCfg.Resolver, "resolver", flagCfg.Resolver, "ytdlp or direct")
	resolveCmd.Flags().StringVar(&flagCfg.YtDlpBin, "ytdlp-bin", flagCfg.YtDlpBin, "yt-dlp executable")
	resolveCmd.Flags().StringVar(&flagCfg.YtDlpFormat, "format", flagCfg.YtDlpFormat, "yt-dlp format selector")
	rootCmd.AddCommand(resolveCmd)
}
