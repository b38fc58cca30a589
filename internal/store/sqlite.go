package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the local
// development backend; schema and behavior mirror PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteNumericDDL(indent string) string {
	var b strings.Builder
	for _, col := range numericColumns() {
		fmt.Fprintf(&b, "%s%s REAL,\n", indent, col)
	}
	return b.String()
}

var sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id                 TEXT PRIMARY KEY,
	filename           TEXT NOT NULL,
	original_filename  TEXT NOT NULL DEFAULT '',
	file_path          TEXT NOT NULL DEFAULT '',
	town               TEXT NOT NULL DEFAULT '',
	county             TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'pending',
	llm_model          TEXT NOT NULL DEFAULT '',
	zones_saved        INTEGER NOT NULL DEFAULT 0,
	duplicates_skipped INTEGER NOT NULL DEFAULT 0,
	corrections        INTEGER NOT NULL DEFAULT 0,
	error              TEXT NOT NULL DEFAULT '',
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	tokens_used        INTEGER NOT NULL DEFAULT 0,
	cost_usd           REAL NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_town ON extraction_jobs(town);

CREATE TABLE IF NOT EXISTS zoning_requirements (
	id                    TEXT PRIMARY KEY,
	job_id                TEXT NOT NULL DEFAULT '',
	town                  TEXT NOT NULL,
	county                TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	zone                  TEXT NOT NULL,
	town_key              TEXT NOT NULL,
	county_key            TEXT NOT NULL DEFAULT '',
	state_key             TEXT NOT NULL DEFAULT '',
	zone_key              TEXT NOT NULL,
` + sqliteNumericDDL("\t") + `
	data_source           TEXT NOT NULL DEFAULT 'AI_Extracted',
	extraction_confidence REAL NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL,
	UNIQUE (town_key, county_key, state_key, zone_key)
);

CREATE INDEX IF NOT EXISTS idx_requirements_town ON zoning_requirements(town_key);
CREATE INDEX IF NOT EXISTS idx_requirements_state ON zoning_requirements(state_key);
CREATE INDEX IF NOT EXISTS idx_requirements_job ON zoning_requirements(job_id);

CREATE TABLE IF NOT EXISTS prompt_experiments (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	description      TEXT NOT NULL DEFAULT '',
	hypothesis       TEXT NOT NULL DEFAULT '',
	prompt_text      TEXT NOT NULL,
	prompt_version   INTEGER NOT NULL DEFAULT 1,
	llm_model        TEXT NOT NULL,
	temperature      REAL NOT NULL DEFAULT 0.1,
	max_tokens       INTEGER NOT NULL DEFAULT 8000,
	is_baseline      INTEGER NOT NULL DEFAULT 0,
	is_active        INTEGER NOT NULL DEFAULT 1,
	total_tests      INTEGER NOT NULL DEFAULT 0,
	average_accuracy REAL NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS test_results (
	id                   TEXT PRIMARY KEY,
	prompt_experiment_id TEXT NOT NULL REFERENCES prompt_experiments(id),
	ground_truth_doc_id  TEXT NOT NULL,
	test_epoch           INTEGER NOT NULL DEFAULT 1,
	test_batch_id        TEXT NOT NULL DEFAULT '',
	raw_response         TEXT NOT NULL DEFAULT '',
	parsed_zones_count   INTEGER NOT NULL DEFAULT 0,
	extraction_success   INTEGER NOT NULL DEFAULT 0,
	overall_accuracy     REAL NOT NULL DEFAULT 0,
	zone_accuracy        REAL NOT NULL DEFAULT 0,
	field_accuracy       REAL NOT NULL DEFAULT 0,
	location_accuracy    REAL NOT NULL DEFAULT 0,
	processing_time_ms   INTEGER NOT NULL DEFAULT 0,
	tokens_used          INTEGER NOT NULL DEFAULT 0,
	cost_usd             REAL NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_test_results_experiment ON test_results(prompt_experiment_id);

CREATE TABLE IF NOT EXISTS ground_truth_documents (
	id                TEXT PRIMARY KEY,
	document_name     TEXT NOT NULL,
	original_filename TEXT NOT NULL DEFAULT '',
	file_path         TEXT NOT NULL DEFAULT '',
	town              TEXT NOT NULL DEFAULT '',
	county            TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	number_of_zones   INTEGER NOT NULL DEFAULT 0,
	complexity        TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	verified_by       TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ground_truth_requirements (
	id                  TEXT PRIMARY KEY,
	ground_truth_doc_id TEXT NOT NULL REFERENCES ground_truth_documents(id),
	zone                TEXT NOT NULL,
	zone_description    TEXT NOT NULL DEFAULT '',
` + sqliteNumericDDL("\t") + `
	created_at          DATETIME NOT NULL,
	UNIQUE (ground_truth_doc_id, zone)
);

CREATE TABLE IF NOT EXISTS zoning_districts (
	id           TEXT PRIMARY KEY,
	municipality TEXT NOT NULL,
	state        TEXT NOT NULL,
	code         TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	geometry     BLOB,
	source_file  TEXT NOT NULL DEFAULT '',
	imported_at  DATETIME NOT NULL,
	UNIQUE (municipality, state, code)
);

CREATE INDEX IF NOT EXISTS idx_districts_municipality ON zoning_districts(municipality, state);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	job            TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT NOT NULL DEFAULT '',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s not found: %s", entity, id)
	}
	return nil
}

// scannable abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// numericNullDests returns sql.NullFloat64 slots for the numeric block.
// database/sql cannot scan into **float64, so the values are copied into
// the model afterwards with applyNumerics.
func numericNullDests() []sql.NullFloat64 {
	return make([]sql.NullFloat64, len(model.NumericFields))
}

func applyNumerics(f *model.RequirementFields, nulls []sql.NullFloat64) {
	for i, name := range model.NumericFields {
		if nulls[i].Valid {
			v := nulls[i].Float64
			f.SetNumeric(name, &v)
		}
	}
}

// --- extraction jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.ExtractionJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, filename, original_filename, file_path, town, county, state, status, llm_model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, job.OriginalFilename, job.FilePath,
		job.Town, job.County, job.State, string(job.Status), job.LLMModel,
		job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert job")
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.ExtractionJob) error {
	job.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET
			town = ?, county = ?, state = ?, status = ?, llm_model = ?,
			zones_saved = ?, duplicates_skipped = ?, corrections = ?, error = ?,
			processing_time_ms = ?, tokens_used = ?, cost_usd = ?, updated_at = ?
		 WHERE id = ?`,
		job.Town, job.County, job.State, string(job.Status), job.LLMModel,
		job.ZonesSaved, job.DuplicatesSkipped, job.Corrections, job.Error,
		job.ProcessingMs, job.TokensUsed, job.CostUSD, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.ExtractionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumnList+` FROM extraction_jobs WHERE id = ?`, jobID)
	job, err := scanJobSQLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ExtractionJob, error) {
	query := `SELECT ` + jobColumnList + ` FROM extraction_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Town != "" {
		query += ` AND LOWER(town) LIKE '%' || LOWER(?) || '%'`
		args = append(args, filter.Town)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.ExtractionJob
	for rows.Next() {
		j, err := scanJobSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) SummarizeJobs(ctx context.Context) (*model.JobSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(zones_saved), 0),
		COALESCE(SUM(duplicates_skipped), 0),
		COALESCE(SUM(corrections), 0),
		COALESCE(SUM(cost_usd), 0)
	FROM extraction_jobs`)

	var sum model.JobSummary
	err := row.Scan(&sum.Total, &sum.Pending, &sum.Processing, &sum.Completed, &sum.Failed,
		&sum.ZonesSaved, &sum.DuplicatesSkipped, &sum.Corrections, &sum.TotalCostUSD)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize jobs")
	}
	return &sum, nil
}

func scanJobSQLite(row scannable) (*model.ExtractionJob, error) {
	var j model.ExtractionJob
	var status string
	err := row.Scan(&j.ID, &j.Filename, &j.OriginalFilename, &j.FilePath,
		&j.Town, &j.County, &j.State, &status, &j.LLMModel,
		&j.ZonesSaved, &j.DuplicatesSkipped, &j.Corrections, &j.Error,
		&j.ProcessingMs, &j.TokensUsed, &j.CostUSD, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

// --- zoning requirements ---

var sqliteUpsertRequirementSQL = buildSQLiteUpsertRequirementSQL()

func buildSQLiteUpsertRequirementSQL() string {
	cols := requirementColumns()

	var sets []string
	for _, col := range cols {
		switch col {
		case "id", "town_key", "county_key", "state_key", "zone_key", "created_at":
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	return fmt.Sprintf(
		`INSERT INTO zoning_requirements (%s) VALUES (%s)
		 ON CONFLICT (town_key, county_key, state_key, zone_key) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		questionPlaceholders(len(cols)),
		strings.Join(sets, ", "),
	)
}

func (s *SQLiteStore) UpsertRequirement(ctx context.Context, req *model.ZoneRequirement) (bool, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.DataSource == "" {
		req.DataSource = model.DataSourceAIExtracted
	}
	now := time.Now().UTC()
	key := req.Key().Normalized()

	// SQLite has no equivalent of xmax for insert detection, so check for
	// the existing row first. Single-writer usage makes this race-free in
	// practice.
	var existingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM zoning_requirements WHERE town_key = ? AND county_key = ? AND state_key = ? AND zone_key = ?`,
		key.Town, key.County, key.State, key.Zone,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return false, eris.Wrapf(err, "sqlite: lookup requirement %s/%s", req.Town, req.Zone)
	}
	created := existingID == ""
	if !created {
		req.ID = existingID
	}

	if _, err := s.db.ExecContext(ctx, sqliteUpsertRequirementSQL, requirementArgs(req, now)...); err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert requirement %s/%s", req.Town, req.Zone)
	}
	req.UpdatedAt = now
	if created {
		req.CreatedAt = now
	}
	return created, nil
}

func (s *SQLiteStore) ListRequirements(ctx context.Context, filter RequirementFilter) ([]model.ZoneRequirement, error) {
	query := `SELECT id, job_id, town, county, state, zone, ` +
		strings.Join(numericColumns(), ", ") +
		`, data_source, extraction_confidence, created_at, updated_at
		 FROM zoning_requirements WHERE 1=1`
	var args []any

	if filter.Town != "" {
		query += ` AND LOWER(town) LIKE '%' || LOWER(?) || '%'`
		args = append(args, filter.Town)
	}
	if filter.County != "" {
		query += ` AND county_key = ?`
		args = append(args, strings.ToLower(filter.County))
	}
	if filter.State != "" {
		query += ` AND state_key = ?`
		args = append(args, strings.ToLower(filter.State))
	}
	if filter.Zone != "" {
		query += ` AND LOWER(zone) LIKE '%' || LOWER(?) || '%'`
		args = append(args, filter.Zone)
	}
	if filter.MinConfidence > 0 {
		query += ` AND extraction_confidence >= ?`
		args = append(args, filter.MinConfidence)
	}
	query += ` ORDER BY town, zone LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list requirements")
	}
	defer rows.Close()

	var reqs []model.ZoneRequirement
	for rows.Next() {
		var r model.ZoneRequirement
		nulls := numericNullDests()
		dests := []any{&r.ID, &r.JobID, &r.Town, &r.County, &r.State, &r.Zone}
		for i := range nulls {
			dests = append(dests, &nulls[i])
		}
		dests = append(dests, &r.DataSource, &r.ExtractionConfidence, &r.CreatedAt, &r.UpdatedAt)
		if err := rows.Scan(dests...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan requirement")
		}
		applyNumerics(&r.RequirementFields, nulls)
		reqs = append(reqs, r)
	}
	return reqs, eris.Wrap(rows.Err(), "sqlite: list requirements iterate")
}

// --- prompt experiments ---

func (s *SQLiteStore) CreateExperiment(ctx context.Context, exp *model.PromptExperiment) error {
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	if exp.PromptVersion == 0 {
		exp.PromptVersion = 1
	}
	if exp.Temperature == 0 {
		exp.Temperature = model.DefaultTemperature
	}
	if exp.MaxTokens == 0 {
		exp.MaxTokens = model.DefaultMaxTokens
	}
	now := time.Now().UTC()
	exp.CreatedAt = now
	exp.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompt_experiments (id, name, description, hypothesis, prompt_text, prompt_version, llm_model, temperature, max_tokens, is_baseline, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.Name, exp.Description, exp.Hypothesis, exp.PromptText, exp.PromptVersion,
		exp.LLMModel, exp.Temperature, exp.MaxTokens, exp.IsBaseline, exp.IsActive,
		exp.CreatedAt, exp.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert experiment %s", exp.Name)
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, id string) (*model.PromptExperiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+experimentColumnList+` FROM prompt_experiments WHERE id = ?`, id)
	exp, err := scanExperimentSQLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get experiment %s", id)
	}
	return exp, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context, filter ExperimentFilter) ([]model.PromptExperiment, error) {
	query := `SELECT ` + experimentColumnList + ` FROM prompt_experiments WHERE 1=1`
	var args []any

	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	if filter.MinTests > 0 {
		query += ` AND total_tests >= ?`
		args = append(args, filter.MinTests)
	}
	query += ` ORDER BY average_accuracy DESC, total_tests DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list experiments")
	}
	defer rows.Close()

	var exps []model.PromptExperiment
	for rows.Next() {
		e, err := scanExperimentSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan experiment")
		}
		exps = append(exps, *e)
	}
	return exps, eris.Wrap(rows.Err(), "sqlite: list experiments iterate")
}

func (s *SQLiteStore) SetExperimentActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prompt_experiments SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: toggle experiment %s", id)
	}
	return checkRowsAffected(res, "experiment", id)
}

func scanExperimentSQLite(row scannable) (*model.PromptExperiment, error) {
	var e model.PromptExperiment
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Hypothesis, &e.PromptText, &e.PromptVersion,
		&e.LLMModel, &e.Temperature, &e.MaxTokens, &e.IsBaseline, &e.IsActive,
		&e.TotalTests, &e.AvgAccuracy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// --- test results ---

func (s *SQLiteStore) RecordTestResult(ctx context.Context, res *model.TestResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	res.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin record test result")
	}
	defer tx.Rollback() //nolint:errcheck

	var totalTests int
	err = tx.QueryRowContext(ctx,
		`SELECT total_tests FROM prompt_experiments WHERE id = ?`, res.ExperimentID,
	).Scan(&totalTests)
	if err == sql.ErrNoRows {
		return eris.Errorf("sqlite: experiment not found: %s", res.ExperimentID)
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: read experiment totals")
	}
	if res.TestEpoch == 0 {
		res.TestEpoch = totalTests + 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO test_results (id, prompt_experiment_id, ground_truth_doc_id, test_epoch, test_batch_id, raw_response, parsed_zones_count, extraction_success, overall_accuracy, zone_accuracy, field_accuracy, location_accuracy, processing_time_ms, tokens_used, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.ExperimentID, res.GroundTruthDocID, res.TestEpoch, res.TestBatchID,
		res.RawResponse, res.ParsedZonesCount, res.Success,
		res.Scores.Overall, res.Scores.Zone, res.Scores.Field, res.Scores.Location,
		res.ProcessingMs, res.TokensUsed, res.CostUSD, res.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert test result")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE prompt_experiments SET
			total_tests = total_tests + 1,
			average_accuracy = (average_accuracy * total_tests + ?) / (total_tests + 1),
			updated_at = ?
		 WHERE id = ?`,
		res.Scores.Overall, res.CreatedAt, res.ExperimentID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update experiment aggregates")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit test result")
}

func (s *SQLiteStore) ListTestResults(ctx context.Context, experimentID string) ([]model.TestResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt_experiment_id, ground_truth_doc_id, test_epoch, test_batch_id, raw_response,
			parsed_zones_count, extraction_success, overall_accuracy, zone_accuracy, field_accuracy,
			location_accuracy, processing_time_ms, tokens_used, cost_usd, created_at
		 FROM test_results WHERE prompt_experiment_id = ? ORDER BY created_at DESC`,
		experimentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list test results")
	}
	defer rows.Close()

	var results []model.TestResult
	for rows.Next() {
		var r model.TestResult
		err := rows.Scan(&r.ID, &r.ExperimentID, &r.GroundTruthDocID, &r.TestEpoch, &r.TestBatchID,
			&r.RawResponse, &r.ParsedZonesCount, &r.Success,
			&r.Scores.Overall, &r.Scores.Zone, &r.Scores.Field, &r.Scores.Location,
			&r.ProcessingMs, &r.TokensUsed, &r.CostUSD, &r.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan test result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list test results iterate")
}

// --- ground truth ---

func (s *SQLiteStore) CreateGroundTruthDoc(ctx context.Context, doc *model.GroundTruthDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ground_truth_documents (id, document_name, original_filename, file_path, town, county, state, number_of_zones, complexity, description, verified_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.DocumentName, doc.OriginalFilename, doc.FilePath,
		doc.Town, doc.County, doc.State, doc.NumberOfZones,
		doc.Complexity, doc.Description, doc.VerifiedBy, doc.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert ground truth doc %s", doc.DocumentName)
}

func (s *SQLiteStore) GetGroundTruthDoc(ctx context.Context, id string) (*model.GroundTruthDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_name, original_filename, file_path, town, county, state, number_of_zones, complexity, description, verified_by, created_at
		 FROM ground_truth_documents WHERE id = ?`, id)

	var d model.GroundTruthDocument
	err := row.Scan(&d.ID, &d.DocumentName, &d.OriginalFilename, &d.FilePath,
		&d.Town, &d.County, &d.State, &d.NumberOfZones,
		&d.Complexity, &d.Description, &d.VerifiedBy, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get ground truth doc %s", id)
	}
	return &d, nil
}

func (s *SQLiteStore) ListGroundTruthDocs(ctx context.Context) ([]model.GroundTruthDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_name, original_filename, file_path, town, county, state, number_of_zones, complexity, description, verified_by, created_at
		 FROM ground_truth_documents ORDER BY document_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ground truth docs")
	}
	defer rows.Close()

	var docs []model.GroundTruthDocument
	for rows.Next() {
		var d model.GroundTruthDocument
		err := rows.Scan(&d.ID, &d.DocumentName, &d.OriginalFilename, &d.FilePath,
			&d.Town, &d.County, &d.State, &d.NumberOfZones,
			&d.Complexity, &d.Description, &d.VerifiedBy, &d.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ground truth doc")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list ground truth docs iterate")
}

func (s *SQLiteStore) ReplaceGroundTruthRequirements(ctx context.Context, docID string, reqs []model.GroundTruthRequirement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace ground truth")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ground_truth_requirements WHERE ground_truth_doc_id = ?`, docID); err != nil {
		return eris.Wrap(err, "sqlite: clear ground truth requirements")
	}

	cols := groundTruthColumns()
	insertSQL := fmt.Sprintf(
		`INSERT INTO ground_truth_requirements (%s) VALUES (%s)`,
		strings.Join(cols, ", "), questionPlaceholders(len(cols)),
	)

	now := time.Now().UTC()
	for i := range reqs {
		gt := &reqs[i]
		if gt.ID == "" {
			gt.ID = uuid.New().String()
		}
		gt.GroundTruthDocID = docID
		gt.CreatedAt = now

		args := []any{gt.ID, gt.GroundTruthDocID, gt.Zone, gt.ZoneDescription}
		args = append(args, gt.NumericArgs()...)
		args = append(args, gt.CreatedAt)

		if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
			return eris.Wrapf(err, "sqlite: insert ground truth zone %s", gt.Zone)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ground_truth_documents SET number_of_zones = ? WHERE id = ?`,
		len(reqs), docID); err != nil {
		return eris.Wrap(err, "sqlite: update ground truth zone count")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit ground truth requirements")
}

func (s *SQLiteStore) ListGroundTruthRequirements(ctx context.Context, docID string) ([]model.GroundTruthRequirement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ground_truth_doc_id, zone, zone_description, `+
			strings.Join(numericColumns(), ", ")+
			`, created_at FROM ground_truth_requirements WHERE ground_truth_doc_id = ? ORDER BY zone`,
		docID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ground truth requirements")
	}
	defer rows.Close()

	var reqs []model.GroundTruthRequirement
	for rows.Next() {
		var gt model.GroundTruthRequirement
		nulls := numericNullDests()
		dests := []any{&gt.ID, &gt.GroundTruthDocID, &gt.Zone, &gt.ZoneDescription}
		for i := range nulls {
			dests = append(dests, &nulls[i])
		}
		dests = append(dests, &gt.CreatedAt)
		if err := rows.Scan(dests...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ground truth requirement")
		}
		applyNumerics(&gt.RequirementFields, nulls)
		reqs = append(reqs, gt)
	}
	return reqs, eris.Wrap(rows.Err(), "sqlite: list ground truth requirements iterate")
}

// --- districts ---

func (s *SQLiteStore) UpsertDistricts(ctx context.Context, districts []model.District) (int64, error) {
	if len(districts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert districts")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zoning_districts (id, municipality, state, code, name, geometry, source_file, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (municipality, state, code) DO UPDATE SET
			name = excluded.name, geometry = excluded.geometry,
			source_file = excluded.source_file, imported_at = excluded.imported_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert districts")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for i := range districts {
		d := &districts[i]
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.ImportedAt = now
		if _, err := stmt.ExecContext(ctx, d.ID, d.Municipality, d.State, d.Code, d.Name, d.Geometry, d.SourceFile, d.ImportedAt); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert district %s/%s", d.Municipality, d.Code)
		}
		n++
	}

	return n, eris.Wrap(tx.Commit(), "sqlite: commit upsert districts")
}

func (s *SQLiteStore) ListDistricts(ctx context.Context, filter DistrictFilter) ([]model.District, error) {
	query := `SELECT id, municipality, state, code, name, geometry, source_file, imported_at
		FROM zoning_districts WHERE 1=1`
	var args []any

	if filter.Municipality != "" {
		query += ` AND LOWER(municipality) = LOWER(?)`
		args = append(args, filter.Municipality)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	query += ` ORDER BY municipality, code LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list districts")
	}
	defer rows.Close()

	var districts []model.District
	for rows.Next() {
		var d model.District
		if err := rows.Scan(&d.ID, &d.Municipality, &d.State, &d.Code, &d.Name, &d.Geometry, &d.SourceFile, &d.ImportedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "sqlite: list districts iterate")
}

// --- dead letter queue ---

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	jobJSON, err := json.Marshal(entry.Job)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dlq job")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue (id, job, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(jobJSON), entry.Error, entry.ErrorType, entry.FailedStage,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, job, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		FROM dead_letter_queue WHERE next_retry_at <= ?`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY next_retry_at ASC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var jobJSON string
		err := rows.Scan(&e.ID, &jobJSON, &e.Error, &e.ErrorType, &e.FailedStage,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if err := json.Unmarshal([]byte(jobJSON), &e.Job); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dlq job")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ? WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: remove dlq %s", id)
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}
