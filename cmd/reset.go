package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/streamsnap/internal/store"
	"github.com/andresmejia3/streamsnap/internal/utils"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all screenshots from the output directory",
	Long:  "Removes every screenshot_<N>.jpg in the output directory so a new watch run can start numbering at 1. Other files are left alone.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runReset(os.Stdin, cmd.OutOrStdout(), cfg.OutputDir, resetYes)
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(in io.Reader, out io.Writer, dir string, yes bool) error {
	st := store.Open(dir)
	n, err := st.Count()
	if err != nil {
		utils.ShowError("Failed to read output directory", err, nil)
		return err
	}
	if n == 0 {
		fmt.Fprintf(out, "Nothing to reset, %s holds no captures.\n", dir)
		return nil
	}

	if !yes && !confirm(bufio.NewReader(in), out, fmt.Sprintf("⚠️  Are you sure you want to delete %d captures from %s?", n, dir)) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	fmt.Fprintln(out, "🗑️  Clearing captures...")
	removed, err := st.Reset()
	if err != nil {
		utils.ShowError("Failed to delete captures", err, nil)
		return err
	}
	fmt.Fprintf(out, "✨ Removed %d captures.\n", removed)
	return nil
}

func confirm(r *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
