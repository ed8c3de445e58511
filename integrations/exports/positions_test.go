package exports

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"stakingcore/crypto"
	"stakingcore/native/staking"
)

func snapshotFixture(t *testing.T) ([]Row, *staking.Config) {
	t.Helper()
	cfg := &staking.Config{
		PointsPerNFTStake:       40,
		PointsPerNativeStake:    1,
		PointsPerFungibleStake:  10,
		MinFreezePeriod:         60,
		AnnualPercentageRateBps: 1000,
	}
	owner := crypto.BytesToAddress([]byte{0x01})
	positions := []*staking.Position{
		{Owner: owner, Asset: staking.NativeAsset(), Seed: 1, Amount: 5_000, StakedAt: 1_000, LockPeriod: 60, Status: staking.PositionActive},
		{Owner: owner, Asset: staking.FungibleAsset(crypto.BytesToAddress([]byte{0xAA})), Seed: 2, Amount: 900, StakedAt: 1_000, LockPeriod: 600, Locked: true, Status: staking.PositionActive},
		{Owner: owner, Asset: staking.NonFungibleAsset(crypto.BytesToAddress([]byte{0xBB})), Seed: 3, Amount: 1, StakedAt: 5_000, LockPeriod: 60, Status: staking.PositionActive},
	}
	rows, err := Snapshot(positions, cfg, 1_300)
	require.NoError(t, err)
	return rows, cfg
}

func TestSnapshotValuesPositions(t *testing.T) {
	rows, cfg := snapshotFixture(t)
	require.Len(t, rows, 3)

	require.Equal(t, "native", rows[0].AssetKind)
	require.Empty(t, rows[0].Mint)
	require.True(t, rows[0].Unlocked)
	require.Equal(t, int64(1_060), rows[0].UnlocksAt)

	require.False(t, rows[1].Unlocked)
	require.NotEmpty(t, rows[1].Mint)
	expected, err := staking.AccruedReward(&staking.Position{Asset: staking.FungibleAsset(crypto.BytesToAddress([]byte{0xAA})), LockPeriod: 600, Locked: true}, 300, cfg)
	require.NoError(t, err)
	require.Equal(t, expected, rows[1].Accrued)

	// staked after the snapshot time
	require.False(t, rows[2].Unlocked)
	require.Zero(t, rows[2].Accrued)
}

func TestWriteCSV(t *testing.T) {
	rows, _ := snapshotFixture(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(rows)+1)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, rows[0].PositionID, records[1][0])
	require.Equal(t, "5000", records[1][5])
}

func TestWriteJSONL(t *testing.T) {
	rows, _ := snapshotFixture(t)
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, rows))
	scanner := bufio.NewScanner(&buf)
	var decoded []Row
	for scanner.Scan() {
		var row Row
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		decoded = append(decoded, row)
	}
	require.Equal(t, rows, decoded)
}

func TestWriteFileParquet(t *testing.T) {
	rows, _ := snapshotFixture(t)
	path := filepath.Join(t.TempDir(), "out", "positions.parquet")
	format, err := FormatForPath(path)
	require.NoError(t, err)
	require.Equal(t, FormatParquet, format)
	require.NoError(t, WriteFile(path, format, rows))

	pf, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer pf.Close()
	pr, err := reader.NewParquetReader(pf, new(Row), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(len(rows)), pr.GetNumRows())

	decoded := make([]Row, len(rows))
	require.NoError(t, pr.Read(&decoded))
	require.Equal(t, rows[1].Amount, decoded[1].Amount)
	require.Equal(t, rows[1].Owner, decoded[1].Owner)
}

func TestWriteFileCSVAndFormats(t *testing.T) {
	rows, _ := snapshotFixture(t)
	path := filepath.Join(t.TempDir(), "positions.csv")
	require.NoError(t, WriteFile(path, FormatCSV, rows))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, len(rows)+1, bytes.Count(data, []byte("\n")))

	_, err = ParseFormat("xml")
	require.Error(t, err)
	require.Error(t, WriteFile(filepath.Join(t.TempDir(), "x"), Format("xml"), rows))
}
