package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"stakingcore/native/staking"
)

type printer struct {
	out   io.Writer
	table bool
}

func (a *app) printer() (*printer, error) {
	switch a.output {
	case "json":
		return &printer{out: a.stdout}, nil
	case "table":
		return &printer{out: a.stdout, table: true}, nil
	case "auto", "":
		return &printer{out: a.stdout, table: isTerminal(a.stdout)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", a.output)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// emit prints v as indented JSON, or as a table built by rows when the output
// is a terminal.
func (p *printer) emit(v any, header []string, rows [][]string) error {
	if !p.table {
		encoder := json.NewEncoder(p.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}
	table := tablewriter.NewWriter(p.out)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

type positionOutput struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	Asset      string `json:"asset"`
	Seed       uint64 `json:"seed"`
	Amount     uint64 `json:"amount"`
	StakedAt   int64  `json:"stakedAt"`
	LockPeriod int64  `json:"lockPeriod"`
	UnlocksAt  int64  `json:"unlocksAt"`
	Locked     bool   `json:"locked"`
	Status     string `json:"status"`
}

func newPositionOutput(pos *staking.Position) positionOutput {
	return positionOutput{
		ID:         pos.ID().String(),
		Owner:      pos.Owner.String(),
		Asset:      pos.Asset.String(),
		Seed:       pos.Seed,
		Amount:     pos.Amount,
		StakedAt:   pos.StakedAt,
		LockPeriod: pos.LockPeriod,
		UnlocksAt:  pos.UnlocksAt(),
		Locked:     pos.Locked,
		Status:     pos.Status.String(),
	}
}

var positionHeader = []string{"ID", "OWNER", "ASSET", "AMOUNT", "STAKED", "UNLOCKS", "LOCKED", "STATUS"}

func (p positionOutput) row() []string {
	return []string{
		shortID(p.ID),
		p.Owner,
		p.Asset,
		strconv.FormatUint(p.Amount, 10),
		formatUnix(p.StakedAt),
		formatUnix(p.UnlocksAt),
		strconv.FormatBool(p.Locked),
		p.Status,
	}
}

func shortID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16]
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
