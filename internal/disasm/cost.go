package disasm

import (
	"fmt"
	"strconv"
)

// Correlate fills one cost cell per event type on every addressed row
// with the instruction's share of the symbol's total cost.
//
// Rows are left untouched in the LBR branch-traverse mode, where
// per-instruction attribution does not hold.
func Correlate(rows []Row, res *Result, sym Symbol) {
	n := res.NumEvents()
	if n == 0 || res.ShortTraversal() {
		return
	}
	entry := res.Entry(sym)

	// Costs keyed by the address spelling objdump prints.
	byAddr := make(map[string]LocationCost, len(entry.Costs))
	totals := make([]float64, n)
	for loc, lc := range entry.Costs {
		key := strconv.FormatUint(loc.RelAddr, 16)
		acc, ok := byAddr[key]
		if !ok {
			acc = make(LocationCost, n)
			byAddr[key] = acc
		}
		for ev := 0; ev < n && ev < len(lc); ev++ {
			acc[ev] += lc[ev]
			totals[ev] += lc[ev]
		}
	}

	for i := range rows {
		row := &rows[i]
		if len(row.Costs) != n {
			row.Costs = make([]string, n)
		}
		if !row.HasAddress {
			continue
		}
		lc, ok := byAddr[strconv.FormatUint(row.Address, 16)]
		if !ok {
			continue
		}
		for ev := 0; ev < n; ev++ {
			row.Costs[ev] = percentCell(lc[ev], totals[ev])
		}
	}
}

// percentCell formats cost/total as "12.34%", or "" when either is zero.
func percentCell(cost, total float64) string {
	if cost == 0 || total == 0 {
		return ""
	}
	return fmt.Sprintf("%.2f%%", cost*100/total)
}
