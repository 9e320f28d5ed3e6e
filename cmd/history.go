package cmd

import (
	"encoding/json"
	"os"

	"github.com/cadence-media/cadence/color"
	"github.com/cadence-media/cadence/history"
	"github.com/cadence-media/cadence/icon"
	"github.com/cadence-media/cadence/style"
	"github.com/cadence-media/cadence/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolP("clear", "c", false, "Remove every resume position")
	historyCmd.Flags().StringP("remove", "r", "", "Remove the resume position of one media")
	historyCmd.Flags().BoolP("json", "j", false, "Print as JSON")
	historyCmd.MarkFlagsMutuallyExclusive("clear", "remove", "json")
	historyCmd.SetOut(os.Stdout)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show saved resume positions",
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("clear")) {
			handleErr(history.Clear())
			cmd.Printf("%s resume positions cleared\n", icon.Get(icon.Success))
			return
		}

		if id := lo.Must(cmd.Flags().GetString("remove")); id != "" {
			handleErr(history.Remove(id))
			cmd.Printf("%s removed %s\n", icon.Get(icon.Success), style.Fg(color.Yellow)(id))
			return
		}

		entries, err := history.List()
		handleErr(err)

		if lo.Must(cmd.Flags().GetBool("json")) {
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(entries))
			return
		}

		if len(entries) == 0 {
			cmd.Println(style.Faint("no resume positions"))
			return
		}

		cmd.Println(style.Bold(util.Quantify(len(entries), "resume position", "resume positions")))
		for _, e := range entries {
			cmd.Println(e.String())
		}
	},
}
