package progress

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	store, err := OpenRedis(context.Background(), mr.Addr(), "")
	if err != nil {
		t.Fatalf("OpenRedis error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreDefaultOnMiss(t *testing.T) {
	store, mr := newTestRedisStore(t)

	rec, err := store.Load(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "p1" || rec.Coins != 0 {
		t.Errorf("unexpected default record: %+v", rec)
	}
	// The default record is written back on first load.
	if !mr.Exists(redisKey("p1")) {
		t.Error("first load should persist the default record")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	rec, err := store.Load(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	rec.Coins = 555
	rec.HighScores["memory"] = 12
	if err := store.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Coins != 555 || got.HighScores["memory"] != 12 {
		t.Errorf("loaded record = %+v, expected saved state back", got)
	}
}

func TestRedisStoreRepairsCorruptValue(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	corrupt := `{"coins":200,"daily_streak":"broken"}`
	mr.Set(redisKey("p1"), corrupt)

	rec, err := store.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("corrupt value should repair, not fail: %v", err)
	}
	if rec.Coins != 200 {
		t.Errorf("coins = %d, expected 200 preserved", rec.Coins)
	}
	if rec.DailyStreak != 0 {
		t.Errorf("daily_streak = %d, expected repaired to 0", rec.DailyStreak)
	}

	// The repair is written back immediately; the corrupt bytes must not
	// survive the load that found them.
	stored, err := mr.Get(redisKey("p1"))
	if err != nil {
		t.Fatal(err)
	}
	if stored == corrupt {
		t.Fatal("corrupt value still stored after repairing load")
	}
	var onDisk Record
	if err := json.Unmarshal([]byte(stored), &onDisk); err != nil {
		t.Fatalf("stored value not valid after repair: %v", err)
	}
	if onDisk.Coins != 200 || onDisk.DailyStreak != 0 {
		t.Errorf("stored repair = coins %d streak %d, expected 200/0", onDisk.Coins, onDisk.DailyStreak)
	}
}
