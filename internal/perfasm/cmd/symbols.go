package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [profile]",
	Short: "List the sampled symbols by cost",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if _, err := ResolveCwd(cmd); err != nil {
			return err
		}
		setenvNoColor()

		s, err := openSession(cmd.Context(), cmd, args[0], false)
		if err != nil {
			return err
		}
		defer s.Close()

		res := s.viewer.Result()
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		header := []string{"#", "Symbol", "Binary"}
		header = append(header, res.EventTypes...)
		table.SetHeader(header)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		table.SetColumnSeparator(" ")
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

		align := []int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT}
		for range res.EventTypes {
			align = append(align, tablewriter.ALIGN_RIGHT)
		}
		table.SetColumnAlignment(align)

		for i, sym := range res.Symbols {
			if limit > 0 && i >= limit {
				break
			}
			row := []string{strconv.Itoa(i + 1), sym.Name, sym.Binary}
			e := res.Entry(sym)
			for ev := range res.EventTypes {
				row = append(row, costCell(e.Total[ev], s.profile.Totals[ev]))
			}
			table.Append(row)
		}
		table.Render()

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s samples, %s symbols\n",
			humanize.Comma(int64(s.profile.Samples)), humanize.Comma(int64(len(res.Symbols))))
		return nil
	},
}

func init() {
	symbolsCmd.Flags().IntP("limit", "l", 0, "Show at most this many symbols")
}

// costCell renders a raw cost with its share of the total.
func costCell(v, total float64) string {
	if total <= 0 {
		return humanize.Comma(int64(v))
	}
	return fmt.Sprintf("%s (%.2f%%)", humanize.Comma(int64(v)), v/total*100)
}
