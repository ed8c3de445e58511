package exports

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"stakingcore/native/staking"
)

// Format selects the snapshot encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts "csv", "jsonl" or "parquet".
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSONL:
		return FormatJSONL, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unknown export format %q", value)
	}
}

// FormatForPath infers the format from the file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Row is one position in a snapshot, valued at the snapshot time.
type Row struct {
	PositionID string `json:"position_id" parquet:"name=position_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Owner      string `json:"owner" parquet:"name=owner, type=BYTE_ARRAY, convertedtype=UTF8"`
	AssetKind  string `json:"asset_kind" parquet:"name=asset_kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Mint       string `json:"mint,omitempty" parquet:"name=mint, type=BYTE_ARRAY, convertedtype=UTF8"`
	Seed       uint64 `json:"seed" parquet:"name=seed, type=INT64, convertedtype=UINT_64"`
	Amount     uint64 `json:"amount" parquet:"name=amount, type=INT64, convertedtype=UINT_64"`
	StakedAt   int64  `json:"staked_at" parquet:"name=staked_at, type=INT64"`
	LockPeriod int64  `json:"lock_period" parquet:"name=lock_period, type=INT64"`
	UnlocksAt  int64  `json:"unlocks_at" parquet:"name=unlocks_at, type=INT64"`
	Locked     bool   `json:"locked" parquet:"name=locked, type=BOOLEAN"`
	Unlocked   bool   `json:"unlocked" parquet:"name=unlocked, type=BOOLEAN"`
	Accrued    uint64 `json:"accrued_reward" parquet:"name=accrued_reward, type=INT64, convertedtype=UINT_64"`
}

var csvHeader = []string{
	"position_id", "owner", "asset_kind", "mint", "seed", "amount",
	"staked_at", "lock_period", "unlocks_at", "locked", "unlocked", "accrued_reward",
}

// Snapshot values every position at now using the stored configuration.
// Positions staked after now report zero elapsed time.
func Snapshot(positions []*staking.Position, cfg *staking.Config, now int64) ([]Row, error) {
	rows := make([]Row, 0, len(positions))
	for _, pos := range positions {
		elapsed := now - pos.StakedAt
		if elapsed < 0 {
			elapsed = 0
		}
		accrued, err := staking.AccruedReward(pos, elapsed, cfg)
		if err != nil {
			return nil, fmt.Errorf("value position %s: %w", pos.ID(), err)
		}
		row := Row{
			PositionID: pos.ID().String(),
			Owner:      pos.Owner.String(),
			AssetKind:  pos.Asset.Kind.String(),
			Seed:       pos.Seed,
			Amount:     pos.Amount,
			StakedAt:   pos.StakedAt,
			LockPeriod: pos.LockPeriod,
			UnlocksAt:  pos.UnlocksAt(),
			Locked:     pos.Locked,
			Unlocked:   elapsed >= pos.LockPeriod,
			Accrued:    accrued,
		}
		if !pos.Asset.Mint.IsZero() {
			row.Mint = pos.Asset.Mint.String()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("exports: csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.PositionID,
			row.Owner,
			row.AssetKind,
			row.Mint,
			strconv.FormatUint(row.Seed, 10),
			strconv.FormatUint(row.Amount, 10),
			strconv.FormatInt(row.StakedAt, 10),
			strconv.FormatInt(row.LockPeriod, 10),
			strconv.FormatInt(row.UnlocksAt, 10),
			strconv.FormatBool(row.Locked),
			strconv.FormatBool(row.Unlocked),
			strconv.FormatUint(row.Accrued, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("exports: csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per row.
func WriteJSONL(w io.Writer, rows []Row) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for i := range rows {
		if err := encoder.Encode(rows[i]); err != nil {
			return fmt.Errorf("exports: jsonl row: %w", err)
		}
	}
	return nil
}

// WriteParquet writes rows as a single snappy-compressed parquet file.
func WriteParquet(w io.Writer, rows []Row) error {
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(Row), 1)
	if err != nil {
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	return nil
}

// WriteFile encodes rows into path using format.
func WriteFile(path string, format Format, rows []Row) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exports: create %s: %w", path, err)
	}
	switch format {
	case FormatCSV:
		err = WriteCSV(file, rows)
	case FormatJSONL:
		err = WriteJSONL(file, rows)
	case FormatParquet:
		err = WriteParquet(file, rows)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("exports: close %s: %w", path, err)
	}
	return nil
}
