package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"stakingcore/core/events"
	"stakingcore/core/types"
	"stakingcore/crypto"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	archive, err := Open(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })
	clock := time.Unix(1_700_000_000, 0)
	archive.SetNowFunc(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	return archive
}

func TestArchiveStoresEmittedEvents(t *testing.T) {
	archive := openTestArchive(t)
	owner := crypto.BytesToAddress([]byte{1})
	id := [32]byte{0xAB}

	archive.Emit(events.StakeOpened{PositionID: id, Owner: owner, Asset: "native", Amount: 10, StakedAt: 5})
	archive.Emit(events.StakeClosed{PositionID: id, Owner: owner, Asset: "native", Amount: 10, Reward: 2})

	records, err := archive.Query(context.Background(), Filter{Owner: owner.String()})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, events.TypeStakeOpened, records[0].Type)
	require.Equal(t, events.TypeStakeClosed, records[1].Type)
	require.Len(t, records[0].Digest, 64)

	evt, err := records[1].Event()
	require.NoError(t, err)
	require.Equal(t, "2", evt.Attr("reward"))

	closed, err := archive.Query(context.Background(), Filter{Type: events.TypeStakeClosed, PositionID: records[0].PositionID})
	require.NoError(t, err)
	require.Len(t, closed, 1)
}

func TestArchiveIgnoresReplays(t *testing.T) {
	archive := openTestArchive(t)
	evt := &types.Event{Type: events.TypeStakeOpened, Attributes: map[string]string{"positionId": "aa", "amount": "1"}}

	inserted, err := archive.Append(context.Background(), evt)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = archive.Append(context.Background(), evt.Clone())
	require.NoError(t, err)
	require.False(t, inserted)

	n, err := archive.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestDigestIsOrderIndependent(t *testing.T) {
	a := &types.Event{Type: "t", Attributes: map[string]string{"a": "1", "b": "2"}}
	b := &types.Event{Type: "t", Attributes: map[string]string{"b": "2", "a": "1"}}
	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	require.Equal(t, da, db)

	c := &types.Event{Type: "t", Attributes: map[string]string{"a": "1", "b": "3"}}
	dc, err := Digest(c)
	require.NoError(t, err)
	require.NotEqual(t, da, dc)

	_, err = Digest(nil)
	require.Error(t, err)
}

func TestQueryLimit(t *testing.T) {
	archive := openTestArchive(t)
	for i := 0; i < 5; i++ {
		_, err := archive.Append(context.Background(), &types.Event{Type: "x", Attributes: map[string]string{"seed": fmt.Sprint(i)}})
		require.NoError(t, err)
	}
	records, err := archive.Query(context.Background(), Filter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, records, 3)
	evt, err := records[0].Event()
	require.NoError(t, err)
	require.Equal(t, "0", evt.Attr("seed"))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ", nil)
	require.ErrorIs(t, err, ErrDSNRequired)
	require.True(t, isPostgres("postgres://u:p@localhost/db"))
	require.True(t, isPostgres("host=localhost user=stake dbname=archive"))
	require.False(t, isPostgres("file:archive.db"))
}
