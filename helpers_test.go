package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStore returns a migrated in-memory SQLite store.
func newTestStore(t *testing.T) *store {
	t.Helper()
	s, err := openStore(driverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.db.Close() })
	require.NoError(t, s.migrateUp())
	return s
}

// seedReferenceRecords inserts n male records clustered around 178cm/75kg.
func seedReferenceRecords(t *testing.T, s *store, n int) {
	t.Helper()
	const q = `
INSERT INTO reference_records
  (sex, height_cm, weight_kg, age, neck_cm, chest_cm, waist_cm, hip_cm, shoulder_cm,
   sleeve_right_cm, sleeve_left_cm, bicep_cm, wrist_cm)
VALUES ('M', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i := 0; i < n; i++ {
		h := 175 + float64(i%7)
		w := 70 + float64(i%9)*1.2
		chest := 20 + 0.25*h + 0.45*w + float64(i%5)
		_, err := s.db.Exec(q, h, w, 25+i%10,
			38+float64(i%4)*0.5, chest, chest/1.02, 95+float64(i%6), 45+float64(i%3)*0.5,
			63+float64(i%5)*0.4, 63+float64(i%5)*0.4, 31+float64(i%4)*0.5, 17+float64(i%3)*0.2)
		require.NoError(t, err)
	}
}

func seedEstimateRequest(t *testing.T, s *store, sex string, height, weight float64, shape, slope string) int64 {
	t.Helper()
	res, err := s.db.Exec(
		`INSERT INTO estimate_requests (sex, height_cm, weight_kg, age, body_shape, shoulder_slope) VALUES (?, ?, ?, 30, NULLIF(?, ''), NULLIF(?, ''))`,
		sex, height, weight, shape, slope)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}
