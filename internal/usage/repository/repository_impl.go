package repository

import (
	"context"

	"github.com/nordial/invoicerun/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Traffic is pre-aggregated per customer per period: SUM of the amounts,
// MAX of the quantities. The join therefore yields at most one traffic
// value pair per customer. Rows already flagged by MarkInvoiced are left
// out so a re-run within the same period cannot bill the traffic twice.
const usageQuery = `SELECT
	cd.systemid AS system_id,
	cd.kundenr AS organization_no,
	p.nr AS product_nr,
	p.vare AS product_description,
	p.antall AS product_quantity,
	p.pris AS product_price,
	f.traffic_price,
	f.traffic_quantity
FROM custdata cd
LEFT JOIN produkter p
	ON cd.systemid = p.systemid AND p.nr IS NOT NULL
LEFT JOIN (
	SELECT systemid,
		SUM(belop) AS traffic_price,
		MAX(antall) AS traffic_quantity
	FROM faktura
	WHERE dato >= ? AND dato < ?
		AND (fakturert = 0 OR fakturert IS NULL)
	GROUP BY systemid
) f ON cd.systemid = f.systemid`

func (r *repo) FetchRows(ctx context.Context, db *gorm.DB, period domain.Period) ([]domain.UsageRow, error) {
	start, end := period.Bounds()
	var rows []domain.UsageRow
	err := db.WithContext(ctx).Raw(
		usageQuery+`
WHERE cd.kundenr IS NOT NULL AND cd.kundenr != ''
ORDER BY cd.systemid`,
		start, end,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FetchRowsForCustomer(ctx context.Context, db *gorm.DB, systemID int64, period domain.Period) ([]domain.UsageRow, error) {
	start, end := period.Bounds()
	var rows []domain.UsageRow
	err := db.WithContext(ctx).Raw(
		usageQuery+`
WHERE cd.kundenr IS NOT NULL AND cd.kundenr != '' AND cd.systemid = ?
ORDER BY cd.systemid`,
		start, end, systemID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkInvoiced(ctx context.Context, db *gorm.DB, systemID int64, period domain.Period) error {
	start, end := period.Bounds()
	return db.WithContext(ctx).Exec(
		`UPDATE faktura SET fakturert = 1 WHERE systemid = ? AND dato >= ? AND dato < ?`,
		systemID, start, end,
	).Error
}
