package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"measure_worker/estimator"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	defaultReferencePageSize = 1000
)

// store wraps the database holding reference records, estimate requests and
// their results. Queries are written with $N placeholders.
type store struct {
	db     *sql.DB
	driver string
}

func buildDSNFromEnv() (string, error) {
	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			return url, nil
		}
		return "", errors.New("POSTGRES_DB not set; set env vars or DATABASE_URL")
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, dbname)
	return dsn, nil
}

// driverAndDSNFromEnv picks the database from DB_DRIVER (postgres by
// default, or sqlite with SQLITE_PATH).
func driverAndDSNFromEnv() (string, string, error) {
	switch driver := strings.ToLower(os.Getenv("DB_DRIVER")); driver {
	case "", driverPostgres:
		dsn, err := buildDSNFromEnv()
		return driverPostgres, dsn, err
	case driverSQLite:
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "measure_worker.db"
		}
		return driverSQLite, path, nil
	default:
		return "", "", fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", driver)
	}
}

func openStore(driver, dsn string) (*store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == driverSQLite {
		// A single connection keeps ":memory:" databases shared and
		// serializes writers.
		db.SetMaxOpenConns(1)
	}
	return &store{db: db, driver: driver}, nil
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for drivers that want plain ?. Every query
// here uses its placeholders once and in order.
func (s *store) rebind(q string) string {
	if s.driver == driverSQLite {
		return placeholderRe.ReplaceAllString(q, "?")
	}
	return q
}

// existsEstimateRequest separates a missing row from a failed lookup.
func (s *store) existsEstimateRequest(id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(s.rebind("SELECT EXISTS(SELECT 1 FROM estimate_requests WHERE id = $1)"), id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup estimate request %d: %w", id, err)
	}
	return exists, nil
}

// estimateRequest is a stored request together with the refinements the
// subject chose.
type estimateRequest struct {
	ID         int64
	Request    estimator.Request
	Refinement estimator.Refinement
}

func (s *store) fetchEstimateRequest(id int64) (estimateRequest, error) {
	const q = `
SELECT sex, height_cm, weight_kg, age, body_shape, shoulder_slope, belly_level, muscle_level, fit
FROM estimate_requests
WHERE id = $1`

	var (
		sex, shape, slope, fit sql.NullString
		height, weight         float64
		age                    sql.NullInt64
		belly, muscle          int
	)
	err := s.db.QueryRow(s.rebind(q), id).Scan(&sex, &height, &weight, &age, &shape, &slope, &belly, &muscle, &fit)
	if err != nil {
		return estimateRequest{}, err
	}
	req := estimateRequest{
		ID: id,
		Request: estimator.Request{
			Profile: estimator.Profile{
				Sex:      sex.String,
				HeightCm: height,
				WeightKg: weight,
			},
			Morphology: estimator.Morphology{
				Shape: estimator.BodyShape(shape.String),
				Slope: estimator.ShoulderSlope(slope.String),
			},
		},
		Refinement: estimator.Refinement{
			BellyLevel:  belly,
			MuscleLevel: muscle,
			Fit:         estimator.Fit(fit.String),
		},
	}
	if age.Valid {
		a := int(age.Int64)
		req.Request.Profile.Age = &a
	}
	return req, nil
}

// validateProfile enforces the estimator's precondition on the subject.
func validateProfile(p estimator.Profile) error {
	if !(p.HeightCm > 0) || math.IsInf(p.HeightCm, 0) {
		return fmt.Errorf("height_cm must be a positive number, got %v", p.HeightCm)
	}
	if !(p.WeightKg > 0) || math.IsInf(p.WeightKg, 0) {
		return fmt.Errorf("weight_kg must be a positive number, got %v", p.WeightKg)
	}
	if p.Age != nil && *p.Age < 0 {
		return fmt.Errorf("age must be non-negative, got %d", *p.Age)
	}
	return nil
}

// fetchReferenceRecords loads the whole reference dataset page by page.
func (s *store) fetchReferenceRecords(perPage int) ([]estimator.Record, error) {
	cols := make([]string, len(estimator.DefaultFields))
	for i, f := range estimator.DefaultFields {
		cols[i] = string(f)
	}
	q := s.rebind("SELECT sex, height_cm, weight_kg, age, " + strings.Join(cols, ", ") +
		" FROM reference_records ORDER BY id ASC LIMIT $1 OFFSET $2")

	var records []estimator.Record
	for page := 1; ; page++ {
		limit, offset := windowLimitOffset(page, perPage)
		n, err := s.scanReferencePage(q, limit, offset, &records)
		if err != nil {
			return nil, err
		}
		if n < limit {
			return records, nil
		}
	}
}

func (s *store) scanReferencePage(q string, limit, offset int, out *[]estimator.Record) (int, error) {
	rows, err := s.db.Query(q, limit, offset)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			sex            sql.NullString
			height, weight sql.NullFloat64
			age            sql.NullInt64
		)
		values := make([]sql.NullFloat64, len(estimator.DefaultFields))
		dest := []any{&sex, &height, &weight, &age}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return n, err
		}
		r := estimator.Record{
			Sex:          sex.String,
			HeightCm:     floatOrNaN(height),
			WeightKg:     floatOrNaN(weight),
			Measurements: make(map[estimator.Field]float64, len(values)),
		}
		if age.Valid {
			a := int(age.Int64)
			r.Age = &a
		}
		for i, v := range values {
			if v.Valid {
				r.Measurements[estimator.DefaultFields[i]] = v.Float64
			}
		}
		*out = append(*out, r)
		n++
	}
	return n, rows.Err()
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// nullFloat stores non-finite values as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func windowLimitOffset(page, perPage int) (limit, offset int) {
	pp := perPage
	if pp <= 0 {
		pp = 1
	}
	pg := page
	if pg <= 0 {
		pg = 1
	}
	return pp, (pg - 1) * pp
}

func normalizePositiveInt(value int64, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return int(value)
}

// referencePageSize reads REFERENCE_PAGE_SIZE, falling back to the default
// for unset or invalid values.
func referencePageSize() int {
	v, _ := strconv.ParseInt(os.Getenv("REFERENCE_PAGE_SIZE"), 10, 64)
	return normalizePositiveInt(v, defaultReferencePageSize)
}

// estimateResult is everything persisted for one processed request.
type estimateResult struct {
	Envelope    *estimator.Envelope
	Fields      []estimator.Field
	Body        map[estimator.Field]float64
	Garment     estimator.Garment
	Duration    float64
	MemoryBytes float64
}

func (s *store) insertEstimateResult(requestID int64, res estimateResult) (runID int64, err error) {
	const runQ = `
INSERT INTO estimate_runs
  (estimate_request_id, subset_size, widenings, fell_back, height_tolerance, weight_tolerance, age_tolerance,
   bmi, garment_chest_cm, garment_waist_cm, garment_hip_cm, duration, memory)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id`
	const fieldQ = `
INSERT INTO estimate_fields
  (estimate_run_id, field, body_cm, estimate, std_dev, sample_count, median, mean, mode, mad)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	meta := res.Envelope.Meta
	err = tx.QueryRow(s.rebind(runQ),
		requestID, meta.SubsetSize, meta.Widenings, meta.FellBack,
		meta.Tolerances.Height, meta.Tolerances.Weight, meta.Tolerances.Age, meta.BMI,
		nullFloat(res.Garment.ChestCm), nullFloat(res.Garment.WaistCm), nullFloat(res.Garment.HipCm),
		res.Duration, res.MemoryBytes,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert estimate_run: %w", err)
	}

	for _, f := range res.Fields {
		sum := res.Envelope.Raw[f]
		body, ok := res.Body[f]
		if !ok {
			body = math.NaN()
		}
		_, err = tx.Exec(s.rebind(fieldQ),
			runID, string(f), nullFloat(body), nullFloat(sum.Estimate), nullFloat(sum.StdDev), sum.N,
			nullFloat(sum.Median), nullFloat(sum.Mean), nullFloat(sum.Mode), nullFloat(sum.MAD),
		)
		if err != nil {
			return 0, fmt.Errorf("insert estimate_field %s: %w", f, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}
