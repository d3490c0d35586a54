package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nordial/invoicerun/internal/usage/domain"
	"github.com/nordial/invoicerun/pkg/db"
	"gorm.io/gorm"
)

func setupUsageDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("new test db: %v", err)
	}

	ddl := []string{
		`CREATE TABLE custdata (systemid INTEGER PRIMARY KEY, kundenr TEXT)`,
		`CREATE TABLE produkter (systemid INTEGER, nr INTEGER, vare TEXT, antall REAL, pris REAL)`,
		`CREATE TABLE faktura (systemid INTEGER, dato DATETIME, belop REAL, antall REAL, fakturert INTEGER DEFAULT 0)`,
	}
	for _, stmt := range ddl {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

func seedUsageData(t *testing.T, conn *gorm.DB) {
	t.Helper()

	inPeriod := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
	inPeriodLater := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	outOfPeriod := time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)

	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO custdata (systemid, kundenr) VALUES (?, ?)`, []any{1, "500"}},
		{`INSERT INTO custdata (systemid, kundenr) VALUES (?, ?)`, []any{2, "600"}},
		{`INSERT INTO custdata (systemid, kundenr) VALUES (?, ?)`, []any{3, ""}},

		{`INSERT INTO produkter (systemid, nr, vare, antall, pris) VALUES (?, ?, ?, ?, ?)`, []any{1, 10, "Basic", 3, 50}},
		{`INSERT INTO produkter (systemid, nr, vare, antall, pris) VALUES (?, ?, ?, ?, ?)`, []any{1, 11, "Extra", 1, 10}},
		{`INSERT INTO produkter (systemid, nr, vare, antall, pris) VALUES (?, ?, ?, ?, ?)`, []any{2, 10, "Basic", 2, 50}},
		// NULL product nr rows are excluded by the join condition.
		{`INSERT INTO produkter (systemid, nr, vare, antall, pris) VALUES (?, NULL, ?, ?, ?)`, []any{2, "Orphan", 1, 1}},

		{`INSERT INTO faktura (systemid, dato, belop, antall) VALUES (?, ?, ?, ?)`, []any{1, inPeriod, 120, 10}},
		{`INSERT INTO faktura (systemid, dato, belop, antall) VALUES (?, ?, ?, ?)`, []any{1, inPeriodLater, 80, 15}},
		{`INSERT INTO faktura (systemid, dato, belop, antall) VALUES (?, ?, ?, ?)`, []any{1, outOfPeriod, 999, 99}},
	}
	for _, s := range stmts {
		if err := conn.Exec(s.sql, s.args...).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func augustPeriod() domain.Period {
	return domain.Period{Year: 2026, Month: time.August}
}

func rowsForSystemID(rows []domain.UsageRow, systemID int64) []domain.UsageRow {
	var out []domain.UsageRow
	for _, r := range rows {
		if r.SystemID == systemID {
			out = append(out, r)
		}
	}
	return out
}

func TestFetchRowsExcludesCustomersWithoutOrganizationNo(t *testing.T) {
	conn := setupUsageDB(t)
	seedUsageData(t, conn)

	rows, err := Provide().FetchRows(context.Background(), conn, augustPeriod())
	if err != nil {
		t.Fatalf("fetch rows: %v", err)
	}

	if got := rowsForSystemID(rows, 3); len(got) != 0 {
		t.Fatalf("expected customer without kundenr to be excluded, got %d rows", len(got))
	}
	if got := rowsForSystemID(rows, 1); len(got) == 0 {
		t.Fatal("expected rows for customer 1")
	}
	if got := rowsForSystemID(rows, 2); len(got) == 0 {
		t.Fatal("expected rows for customer 2")
	}
}

func TestFetchRowsAggregatesTrafficPerPeriod(t *testing.T) {
	conn := setupUsageDB(t)
	seedUsageData(t, conn)

	rows, err := Provide().FetchRows(context.Background(), conn, augustPeriod())
	if err != nil {
		t.Fatalf("fetch rows: %v", err)
	}

	for _, row := range rowsForSystemID(rows, 1) {
		if row.TrafficPrice == nil || row.TrafficQuantity == nil {
			t.Fatalf("expected traffic columns on customer 1 rows, got %+v", row)
		}
		// SUM over the period's amounts, MAX over its quantities; the July
		// row must not contribute.
		if *row.TrafficPrice != 200 {
			t.Fatalf("expected traffic price 200, got %v", *row.TrafficPrice)
		}
		if *row.TrafficQuantity != 15 {
			t.Fatalf("expected traffic quantity 15, got %v", *row.TrafficQuantity)
		}
	}

	for _, row := range rowsForSystemID(rows, 2) {
		if row.TrafficPrice != nil || row.TrafficQuantity != nil {
			t.Fatalf("expected no traffic for customer 2, got %+v", row)
		}
	}
}

func TestFetchRowsExcludesNullProductNr(t *testing.T) {
	conn := setupUsageDB(t)
	seedUsageData(t, conn)

	rows, err := Provide().FetchRows(context.Background(), conn, augustPeriod())
	if err != nil {
		t.Fatalf("fetch rows: %v", err)
	}

	got := rowsForSystemID(rows, 2)
	if len(got) != 1 {
		t.Fatalf("expected exactly one product row for customer 2, got %d", len(got))
	}
	if got[0].ProductNr == nil || *got[0].ProductNr != 10 {
		t.Fatalf("expected product 10, got %+v", got[0])
	}
}

func TestFetchRowsForCustomerParity(t *testing.T) {
	conn := setupUsageDB(t)
	seedUsageData(t, conn)

	repo := Provide()
	all, err := repo.FetchRows(context.Background(), conn, augustPeriod())
	if err != nil {
		t.Fatalf("fetch rows: %v", err)
	}
	single, err := repo.FetchRowsForCustomer(context.Background(), conn, 1, augustPeriod())
	if err != nil {
		t.Fatalf("fetch rows for customer: %v", err)
	}

	want := rowsForSystemID(all, 1)
	if len(single) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(single))
	}
	for i := range single {
		if single[i] != want[i] {
			// UsageRow has pointer fields; compare values.
			if single[i].SystemID != want[i].SystemID ||
				single[i].OrganizationNo != want[i].OrganizationNo ||
				*single[i].ProductNr != *want[i].ProductNr ||
				*single[i].TrafficPrice != *want[i].TrafficPrice {
				t.Fatalf("row %d differs: %+v vs %+v", i, single[i], want[i])
			}
		}
	}
}

func TestFetchRowsIgnoresAlreadyInvoicedTraffic(t *testing.T) {
	conn := setupUsageDB(t)
	seedUsageData(t, conn)

	repo := Provide()
	if err := repo.MarkInvoiced(context.Background(), conn, 1, augustPeriod()); err != nil {
		t.Fatalf("mark invoiced: %v", err)
	}

	rows, err := repo.FetchRows(context.Background(), conn, augustPeriod())
	if err != nil {
		t.Fatalf("fetch rows: %v", err)
	}

	got := rowsForSystemID(rows, 1)
	if len(got) == 0 {
		t.Fatal("expected product rows for customer 1 to survive")
	}
	for _, row := range got {
		// A second run in the same period must not see the traffic again.
		if row.TrafficPrice != nil || row.TrafficQuantity != nil {
			t.Fatalf("invoiced traffic still fetched: %+v", row)
		}
	}

	single, err := repo.FetchRowsForCustomer(context.Background(), conn, 1, augustPeriod())
	if err != nil {
		t.Fatalf("fetch rows for customer: %v", err)
	}
	for _, row := range single {
		if row.TrafficPrice != nil || row.TrafficQuantity != nil {
			t.Fatalf("invoiced traffic still fetched for single customer: %+v", row)
		}
	}
}

func TestMarkInvoicedFlagsOnlyPeriodRows(t *testing.T) {
	conn := setupUsageDB(t)
	seedUsageData(t, conn)

	if err := Provide().MarkInvoiced(context.Background(), conn, 1, augustPeriod()); err != nil {
		t.Fatalf("mark invoiced: %v", err)
	}

	var flagged, unflagged int64
	if err := conn.Raw(`SELECT COUNT(*) FROM faktura WHERE systemid = 1 AND fakturert = 1`).Scan(&flagged).Error; err != nil {
		t.Fatalf("count flagged: %v", err)
	}
	if err := conn.Raw(`SELECT COUNT(*) FROM faktura WHERE systemid = 1 AND fakturert = 0`).Scan(&unflagged).Error; err != nil {
		t.Fatalf("count unflagged: %v", err)
	}

	if flagged != 2 {
		t.Fatalf("expected 2 rows flagged, got %d", flagged)
	}
	if unflagged != 1 {
		t.Fatalf("expected the July row untouched, got %d unflagged", unflagged)
	}
}
