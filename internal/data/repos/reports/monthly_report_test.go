package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/charity-iap-backend/internal/data/repos/testutil"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
)

func TestAggregationQueries(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewMonthlyReportRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	water := testutil.SeedCharity(t, ctx, db, "Water")
	trees := testutil.SeedCharity(t, ctx, db, "Trees")

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	in1 := testutil.SeedPurchase(t, ctx, db, water.ID, 199, testutil.Completed(start, 60, 139, 14))
	in2 := testutil.SeedPurchase(t, ctx, db, water.ID, 499, testutil.Completed(start.Add(48*time.Hour), 150, 349, 35))
	in3 := testutil.SeedPurchase(t, ctx, db, trees.ID, 999, testutil.Completed(end.Add(-time.Second), 300, 699, 70))
	out := testutil.SeedPurchase(t, ctx, db, trees.ID, 999, testutil.Completed(end, 300, 699, 70))
	testutil.SeedDonation(t, ctx, db, in1)
	testutil.SeedDonation(t, ctx, db, in2)
	testutil.SeedDonation(t, ctx, db, in3)
	testutil.SeedDonation(t, ctx, db, out)
	testutil.SeedPurchase(t, ctx, db, trees.ID, 999) // pending, excluded

	totals, err := repo.CompletedTotals(dbc, start, end)
	if err != nil {
		t.Fatalf("CompletedTotals: %v", err)
	}
	if totals.PurchaseCount != 3 || totals.GrossCents != 1697 || totals.DonationCents != 119 {
		t.Fatalf("totals: got=%+v", totals)
	}

	byCharity, err := repo.DonationsByCharity(dbc, start, end)
	if err != nil {
		t.Fatalf("DonationsByCharity: %v", err)
	}
	if len(byCharity) != 2 {
		t.Fatalf("charities: want=2 got=%d", len(byCharity))
	}
	if byCharity[0].CharityID.String() > byCharity[1].CharityID.String() {
		t.Fatalf("charities not ordered by id: %+v", byCharity)
	}
	var sum int64
	for _, c := range byCharity {
		sum += c.DonationCents
		switch c.CharityID {
		case water.ID:
			if c.CharityName != "Water" || c.DonationCents != 49 || c.DonationCount != 2 {
				t.Fatalf("water: got=%+v", c)
			}
		case trees.ID:
			if c.CharityName != "Trees" || c.DonationCents != 70 || c.DonationCount != 1 {
				t.Fatalf("trees: got=%+v", c)
			}
		}
	}
	if sum != totals.DonationCents {
		t.Fatalf("reconciliation: per-charity=%d totals=%d", sum, totals.DonationCents)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewMonthlyReportRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	first, err := repo.Upsert(dbc, "2024-03", datatypes.JSON([]byte(`{"v":1}`)), time.Now())
	if err != nil {
		t.Fatalf("Upsert first: %v", err)
	}
	second, err := repo.Upsert(dbc, "2024-03", datatypes.JSON([]byte(`{"v":2}`)), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Upsert second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("upsert should keep the row: first=%s second=%s", first.ID, second.ID)
	}
	var payload struct{ V int }
	if err := json.Unmarshal(second.Payload, &payload); err != nil || payload.V != 2 {
		t.Fatalf("payload: want v=2 got=%s err=%v", string(second.Payload), err)
	}
	var n int64
	if err := db.Table("monthly_report").Where("month = ?", "2024-03").Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("rows: want=1 got=%d err=%v", n, err)
	}
	missing, err := repo.GetByMonth(dbc, "1999-01")
	if err != nil || missing != nil {
		t.Fatalf("GetByMonth missing: got=%v err=%v", missing, err)
	}
}

func TestSnapshotRunsInOneTransaction(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewMonthlyReportRepo(db, testutil.Logger(t))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	water := testutil.SeedCharity(t, ctx, db, "Water")
	p := testutil.SeedPurchase(t, ctx, db, water.ID, 199, testutil.Completed(start, 60, 139, 14))
	testutil.SeedDonation(t, ctx, db, p)

	var calls int
	err := repo.Snapshot(dbctx.Context{Ctx: ctx}, func(dbc dbctx.Context) error {
		calls++
		if !inTransaction(dbc.Tx) {
			t.Fatalf("snapshot: want an open transaction")
		}
		totals, err := repo.CompletedTotals(dbc, start, end)
		if err != nil {
			return err
		}
		byCharity, err := repo.DonationsByCharity(dbc, start, end)
		if err != nil {
			return err
		}
		if totals.DonationCents != 14 || len(byCharity) != 1 || byCharity[0].DonationCents != 14 {
			t.Fatalf("snapshot reads: totals=%+v byCharity=%+v", totals, byCharity)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}

	boom := errors.New("boom")
	if err := repo.Snapshot(dbctx.Context{Ctx: ctx}, func(dbctx.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Snapshot error: want=%v got=%v", boom, err)
	}

	err = repo.Snapshot(dbctx.Context{Ctx: ctx}, func(outer dbctx.Context) error {
		return repo.Snapshot(outer, func(inner dbctx.Context) error {
			if inner.Tx != outer.Tx {
				t.Fatalf("nested snapshot: want the caller's transaction reused")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested Snapshot: %v", err)
	}
}
