package version

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

const (
	KindBaseline = "baseline"
	KindForecast = "forecast"
)

// ParquetRow is one entity month of a version, flattened for offline analysis.
type ParquetRow struct {
	VersionID      string    `parquet:"version_id,snappy"`
	OrganizationID string    `parquet:"organization_id,snappy"`
	VersionNumber  int32     `parquet:"version_number,snappy"`
	Status         string    `parquet:"status,snappy"`
	IsActive       bool      `parquet:"is_active"`
	CreatedAt      time.Time `parquet:"created_at,snappy"`

	EntityID   string  `parquet:"entity_id,snappy"`
	EntityName string  `parquet:"entity_name,snappy"`
	Month      string  `parquet:"month,snappy"`
	Kind       string  `parquet:"kind,snappy"`
	Value      float64 `parquet:"value,snappy"`

	// CMGR is the growth rate applied to the entity, repeated on each row
	CMGR float64 `parquet:"cmgr,snappy"`
}

// ParquetRows flattens versions into rows ordered by version, entity, kind and month.
func ParquetRows(versions []*Version) []ParquetRow {
	var rows []ParquetRow
	for _, v := range versions {
		if v == nil {
			continue
		}
		for _, e := range v.Entities {
			base := ParquetRow{
				VersionID:      v.ID,
				OrganizationID: v.OrganizationID,
				VersionNumber:  int32(v.Number),
				Status:         string(v.Status),
				IsActive:       v.IsActive,
				CreatedAt:      v.CreatedAt,
				EntityID:       e.EntityID,
				EntityName:     e.EntityName,
				CMGR:           e.CMGR,
			}
			for _, m := range e.Baseline.Months() {
				row := base
				row.Month = m.String()
				row.Kind = KindBaseline
				row.Value = e.Baseline[m]
				rows = append(rows, row)
			}
			for _, m := range e.Forecast.Months() {
				row := base
				row.Month = m.String()
				row.Kind = KindForecast
				row.Value = e.Forecast[m]
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// ExportParquet writes the versions to w as a Parquet file.
func ExportParquet(w io.Writer, versions []*Version) error {
	writer := parquet.NewGenericWriter[ParquetRow](w)
	if _, err := writer.Write(ParquetRows(versions)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
