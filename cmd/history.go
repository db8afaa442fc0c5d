package cmd

import (
	"dropfiles/internal/model"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var historyN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync history",
	RunE: func(cmd *cobra.Command, args []string) error {
		var histories []model.History
		if err := callDaemon(http.MethodGet, fmt.Sprintf("/history?n=%d", historyN), nil, &histories); err != nil {
			return err
		}

		if len(histories) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, h := range histories {
			status := "✓"
			detail := fmt.Sprintf("%d files", h.Files)
			if h.Status == model.StatusFailure {
				status = "✗"
				detail = h.ErrMsg
			}

			fmt.Printf("%s [%s] %-8s %s -> %s  %s\n",
				status,
				h.StartedAt.Local().Format("2006-01-02 15:04:05"),
				h.FinishedAt.Sub(h.StartedAt).Round(time.Millisecond),
				h.Source,
				h.Destination,
				detail,
			)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	rootCmd.AddCommand(historyCmd)
}
