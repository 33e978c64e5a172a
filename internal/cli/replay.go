package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/embedwebd/httpd/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <record-dir> <host:port>",
	Short: "Replay a recorded request/response pair set against a live server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		diffs, err := replay.Replay(args[0], args[1])
		if err != nil {
			return err
		}
		if len(diffs) == 0 {
			fmt.Fprintln(os.Stdout, "all cases matched")
			return nil
		}
		for _, d := range diffs {
			fmt.Fprintf(os.Stdout, "case %d: %s mismatch: want %q got %q\n", d.Case, d.Field, d.Want, d.Got)
		}
		return fmt.Errorf("httpd-server: %d mismatches", len(diffs))
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
