package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/streamsnap/internal/store"
	"github.com/andresmejia3/streamsnap/internal/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the screenshots saved in the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runList(cmd.OutOrStdout(), cfg.OutputDir)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(out io.Writer, dir string) error {
	captures, err := store.Open(dir).List()
	if err != nil {
		utils.ShowError("Failed to list captures", err, nil)
		return err
	}

	if len(captures) == 0 {
		fmt.Fprintf(out, "No captures found in %s.\n", dir)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tSIZE\tSAVED")
	fmt.Fprintln(w, "-\t----\t----\t-----")

	for _, c := range captures {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.Index, c.Name, humanize.Bytes(uint64(c.Size)), c.ModTime.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
