package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/db"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_job":            `SELECT ` + jobColumnList + ` FROM extraction_jobs WHERE id = $1`,
	"upsert_requirement": upsertRequirementSQL,
	"get_experiment":     `SELECT ` + experimentColumnList + ` FROM prompt_experiments WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests and by
// subsystems that manage their own pool lifecycle.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for bulk operations (COPY-based upserts).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

var postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	tokens_used        INTEGER NOT NULL DEFAULT 0,
	cost_usd           DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_town ON extraction_jobs(town);

CREATE TABLE IF NOT EXISTS zoning_requirements (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id                TEXT NOT NULL DEFAULT '',
	town                  TEXT NOT NULL,
	county                TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	zone                  TEXT NOT NULL,
	town_key              TEXT NOT NULL,
	county_key            TEXT NOT NULL DEFAULT '',
	state_key             TEXT NOT NULL DEFAULT '',
	zone_key              TEXT NOT NULL,
` + numericColumnDDL("\t") + `
	data_source           TEXT NOT NULL DEFAULT 'AI_Extracted',
	extraction_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (town_key, county_key, state_key, zone_key)
);

CREATE INDEX IF NOT EXISTS idx_requirements_town ON zoning_requirements(town_key);
CREATE INDEX IF NOT EXISTS idx_requirements_state ON zoning_requirements(state_key);
CREATE INDEX IF NOT EXISTS idx_requirements_job ON zoning_requirements(job_id);

CREATE TABLE IF NOT EXISTS prompt_experiments (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name             TEXT NOT NULL UNIQUE,
	description      TEXT NOT NULL DEFAULT '',
	hypothesis       TEXT NOT NULL DEFAULT '',
	prompt_text      TEXT NOT NULL,
	prompt_version   INTEGER NOT NULL DEFAULT 1,
	llm_model        TEXT NOT NULL,
	temperature      DOUBLE PRECISION NOT NULL DEFAULT 0.1,
	max_tokens       INTEGER NOT NULL DEFAULT 8000,
	is_baseline      BOOLEAN NOT NULL DEFAULT false,
	is_active        BOOLEAN NOT NULL DEFAULT true,
	total_tests      INTEGER NOT NULL DEFAULT 0,
	average_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS test_results (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	prompt_experiment_id TEXT NOT NULL REFERENCES prompt_experiments(id),
	ground_truth_doc_id TEXT NOT NULL,
	test_epoch          INTEGER NOT NULL DEFAULT 1,
	test_batch_id       TEXT NOT NULL DEFAULT '',
	raw_response        TEXT NOT NULL DEFAULT '',
	parsed_zones_count  INTEGER NOT NULL DEFAULT 0,
	extraction_success  BOOLEAN NOT NULL DEFAULT false,
	overall_accuracy    DOUBLE PRECISION NOT NULL DEFAULT 0,
	zone_accuracy       DOUBLE PRECISION NOT NULL DEFAULT 0,
	field_accuracy      DOUBLE PRECISION NOT NULL DEFAULT 0,
	location_accuracy   DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms  BIGINT NOT NULL DEFAULT 0,
	tokens_used         INTEGER NOT NULL DEFAULT 0,
	cost_usd            DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_test_results_experiment ON test_results(prompt_experiment_id);

CREATE TABLE IF NOT EXISTS ground_truth_documents (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ground_truth_requirements (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ground_truth_doc_id TEXT NOT NULL REFERENCES ground_truth_documents(id),
	zone                TEXT NOT NULL,
	zone_description    TEXT NOT NULL DEFAULT '',
` + numericColumnDDL("\t") + `
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (ground_truth_doc_id, zone)
);

CREATE TABLE IF NOT EXISTS zoning_districts (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	municipality TEXT NOT NULL,
	state        TEXT NOT NULL,
	code         TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	geometry     BYTEA,
	source_file  TEXT NOT NULL DEFAULT '',
	imported_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (municipality, state, code)
);

CREATE INDEX IF NOT EXISTS idx_districts_municipality ON zoning_districts(municipality, state);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job            JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT NOT NULL DEFAULT '',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- extraction jobs ---

const jobColumnList = `id, filename, original_filename, file_path, town, county, state, status, llm_model,
	zones_saved, duplicates_skipped, corrections, error, processing_time_ms, tokens_used, cost_usd,
	created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.ExtractionJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_jobs (id, filename, original_filename, file_path, town, county, state, status, llm_model, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.Filename, job.OriginalFilename, job.FilePath,
		job.Town, job.County, job.State, string(job.Status), job.LLMModel,
		job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert job")
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.ExtractionJob) error {
	job.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs SET
			town = $1, county = $2, state = $3, status = $4, llm_model = $5,
			zones_saved = $6, duplicates_skipped = $7, corrections = $8, error = $9,
			processing_time_ms = $10, tokens_used = $11, cost_usd = $12, updated_at = $13
		 WHERE id = $14`,
		job.Town, job.County, job.State, string(job.Status), job.LLMModel,
		job.ZonesSaved, job.DuplicatesSkipped, job.Corrections, job.Error,
		job.ProcessingMs, job.TokensUsed, job.CostUSD, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: job not found: %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.ExtractionJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumnList+` FROM extraction_jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ExtractionJob, error) {
	query := `SELECT ` + jobColumnList + ` FROM extraction_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Town != "" {
		args = append(args, filter.Town)
		query += fmt.Sprintf(` AND town ILIKE '%%' || $%d || '%%'`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.ExtractionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) SummarizeJobs(ctx context.Context) (*model.JobSummary, error) {
	row := s.pool.QueryRow(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'processing'),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COUNT(*) FILTER (WHERE status = 'failed'),
		COALESCE(SUM(zones_saved), 0),
		COALESCE(SUM(duplicates_skipped), 0),
		COALESCE(SUM(corrections), 0),
		COALESCE(SUM(cost_usd), 0)
	FROM extraction_jobs`)

	var sum model.JobSummary
	err := row.Scan(&sum.Total, &sum.Pending, &sum.Processing, &sum.Completed, &sum.Failed,
		&sum.ZonesSaved, &sum.DuplicatesSkipped, &sum.Corrections, &sum.TotalCostUSD)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize jobs")
	}
	return &sum, nil
}

func scanJob(row pgx.Row) (*model.ExtractionJob, error) {
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

var upsertRequirementSQL = buildUpsertRequirementSQL()

func buildUpsertRequirementSQL() string {
	cols := requirementColumns()

	var sets []string
	for _, col := range cols {
		switch col {
		case "id", "town_key", "county_key", "state_key", "zone_key", "created_at":
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	return fmt.Sprintf(
		`INSERT INTO zoning_requirements (%s) VALUES (%s)
		 ON CONFLICT (town_key, county_key, state_key, zone_key) DO UPDATE SET %s
		 RETURNING id, (xmax = 0) AS inserted`,
		strings.Join(cols, ", "),
		dollarPlaceholders(len(cols)),
		strings.Join(sets, ", "),
	)
}

// requirementArgs lays out a record's values in requirementColumns order.
func requirementArgs(req *model.ZoneRequirement, now time.Time) []any {
	key := req.Key().Normalized()
	args := []any{
		req.ID, req.JobID,
		req.Town, req.County, req.State, req.Zone,
		key.Town, key.County, key.State, key.Zone,
	}
	args = append(args, req.NumericArgs()...)
	return append(args, req.DataSource, req.ExtractionConfidence, now, now)
}

func (s *PostgresStore) UpsertRequirement(ctx context.Context, req *model.ZoneRequirement) (bool, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.DataSource == "" {
		req.DataSource = model.DataSourceAIExtracted
	}
	now := time.Now().UTC()

	var id string
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertRequirementSQL, requirementArgs(req, now)...).Scan(&id, &inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert requirement %s/%s", req.Town, req.Zone)
	}
	req.ID = id
	req.UpdatedAt = now
	if inserted {
		req.CreatedAt = now
	}
	return inserted, nil
}

func (s *PostgresStore) ListRequirements(ctx context.Context, filter RequirementFilter) ([]model.ZoneRequirement, error) {
	query := `SELECT id, job_id, town, county, state, zone, ` +
		strings.Join(numericColumns(), ", ") +
		`, data_source, extraction_confidence, created_at, updated_at
		 FROM zoning_requirements WHERE 1=1`
	var args []any

	if filter.Town != "" {
		args = append(args, filter.Town)
		query += fmt.Sprintf(` AND town ILIKE '%%' || $%d || '%%'`, len(args))
	}
	if filter.County != "" {
		args = append(args, strings.ToLower(filter.County))
		query += fmt.Sprintf(` AND county_key = $%d`, len(args))
	}
	if filter.State != "" {
		args = append(args, strings.ToLower(filter.State))
		query += fmt.Sprintf(` AND state_key = $%d`, len(args))
	}
	if filter.Zone != "" {
		args = append(args, filter.Zone)
		query += fmt.Sprintf(` AND zone ILIKE '%%' || $%d || '%%'`, len(args))
	}
	if filter.MinConfidence > 0 {
		args = append(args, filter.MinConfidence)
		query += fmt.Sprintf(` AND extraction_confidence >= $%d`, len(args))
	}
	query += ` ORDER BY town, zone`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list requirements")
	}
	defer rows.Close()

	var reqs []model.ZoneRequirement
	for rows.Next() {
		var r model.ZoneRequirement
		dests := []any{&r.ID, &r.JobID, &r.Town, &r.County, &r.State, &r.Zone}
		dests = append(dests, r.NumericScanDests()...)
		dests = append(dests, &r.DataSource, &r.ExtractionConfidence, &r.CreatedAt, &r.UpdatedAt)
		if err := rows.Scan(dests...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan requirement")
		}
		reqs = append(reqs, r)
	}
	return reqs, eris.Wrap(rows.Err(), "postgres: list requirements iterate")
}

// --- prompt experiments ---

const experimentColumnList = `id, name, description, hypothesis, prompt_text, prompt_version, llm_model,
	temperature, max_tokens, is_baseline, is_active, total_tests, average_accuracy, created_at, updated_at`

func (s *PostgresStore) CreateExperiment(ctx context.Context, exp *model.PromptExperiment) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO prompt_experiments (id, name, description, hypothesis, prompt_text, prompt_version, llm_model, temperature, max_tokens, is_baseline, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		exp.ID, exp.Name, exp.Description, exp.Hypothesis, exp.PromptText, exp.PromptVersion,
		exp.LLMModel, exp.Temperature, exp.MaxTokens, exp.IsBaseline, exp.IsActive,
		exp.CreatedAt, exp.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert experiment %s", exp.Name)
}

func (s *PostgresStore) GetExperiment(ctx context.Context, id string) (*model.PromptExperiment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+experimentColumnList+` FROM prompt_experiments WHERE id = $1`, id)
	exp, err := scanExperiment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get experiment %s", id)
	}
	return exp, nil
}

func (s *PostgresStore) ListExperiments(ctx context.Context, filter ExperimentFilter) ([]model.PromptExperiment, error) {
	query := `SELECT ` + experimentColumnList + ` FROM prompt_experiments WHERE 1=1`
	var args []any

	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	if filter.MinTests > 0 {
		args = append(args, filter.MinTests)
		query += fmt.Sprintf(` AND total_tests >= $%d`, len(args))
	}
	query += ` ORDER BY average_accuracy DESC, total_tests DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list experiments")
	}
	defer rows.Close()

	var exps []model.PromptExperiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan experiment")
		}
		exps = append(exps, *e)
	}
	return exps, eris.Wrap(rows.Err(), "postgres: list experiments iterate")
}

func (s *PostgresStore) SetExperimentActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prompt_experiments SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: toggle experiment %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: experiment not found: %s", id)
	}
	return nil
}

func scanExperiment(row pgx.Row) (*model.PromptExperiment, error) {
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

func (s *PostgresStore) RecordTestResult(ctx context.Context, res *model.TestResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	res.CreatedAt = time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin record test result")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var totalTests int
	err = tx.QueryRow(ctx,
		`SELECT total_tests FROM prompt_experiments WHERE id = $1`, res.ExperimentID,
	).Scan(&totalTests)
	if err == pgx.ErrNoRows {
		return eris.Errorf("postgres: experiment not found: %s", res.ExperimentID)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: read experiment totals")
	}
	if res.TestEpoch == 0 {
		res.TestEpoch = totalTests + 1
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO test_results (id, prompt_experiment_id, ground_truth_doc_id, test_epoch, test_batch_id, raw_response, parsed_zones_count, extraction_success, overall_accuracy, zone_accuracy, field_accuracy, location_accuracy, processing_time_ms, tokens_used, cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		res.ID, res.ExperimentID, res.GroundTruthDocID, res.TestEpoch, res.TestBatchID,
		res.RawResponse, res.ParsedZonesCount, res.Success,
		res.Scores.Overall, res.Scores.Zone, res.Scores.Field, res.Scores.Location,
		res.ProcessingMs, res.TokensUsed, res.CostUSD, res.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert test result")
	}

	// Fold into the experiment's rolling average.
	_, err = tx.Exec(ctx,
		`UPDATE prompt_experiments SET
			total_tests = total_tests + 1,
			average_accuracy = (average_accuracy * total_tests + $1) / (total_tests + 1),
			updated_at = $2
		 WHERE id = $3`,
		res.Scores.Overall, res.CreatedAt, res.ExperimentID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update experiment aggregates")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit test result")
}

func (s *PostgresStore) ListTestResults(ctx context.Context, experimentID string) ([]model.TestResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, prompt_experiment_id, ground_truth_doc_id, test_epoch, test_batch_id, raw_response,
			parsed_zones_count, extraction_success, overall_accuracy, zone_accuracy, field_accuracy,
			location_accuracy, processing_time_ms, tokens_used, cost_usd, created_at
		 FROM test_results WHERE prompt_experiment_id = $1 ORDER BY created_at DESC`,
		experimentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list test results")
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
			return nil, eris.Wrap(err, "postgres: scan test result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list test results iterate")
}

// --- ground truth ---

func (s *PostgresStore) CreateGroundTruthDoc(ctx context.Context, doc *model.GroundTruthDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ground_truth_documents (id, document_name, original_filename, file_path, town, county, state, number_of_zones, complexity, description, verified_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		doc.ID, doc.DocumentName, doc.OriginalFilename, doc.FilePath,
		doc.Town, doc.County, doc.State, doc.NumberOfZones,
		doc.Complexity, doc.Description, doc.VerifiedBy, doc.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert ground truth doc %s", doc.DocumentName)
}

func (s *PostgresStore) GetGroundTruthDoc(ctx context.Context, id string) (*model.GroundTruthDocument, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, document_name, original_filename, file_path, town, county, state, number_of_zones, complexity, description, verified_by, created_at
		 FROM ground_truth_documents WHERE id = $1`, id)

	var d model.GroundTruthDocument
	err := row.Scan(&d.ID, &d.DocumentName, &d.OriginalFilename, &d.FilePath,
		&d.Town, &d.County, &d.State, &d.NumberOfZones,
		&d.Complexity, &d.Description, &d.VerifiedBy, &d.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get ground truth doc %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListGroundTruthDocs(ctx context.Context) ([]model.GroundTruthDocument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_name, original_filename, file_path, town, county, state, number_of_zones, complexity, description, verified_by, created_at
		 FROM ground_truth_documents ORDER BY document_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ground truth docs")
	}
	defer rows.Close()

	var docs []model.GroundTruthDocument
	for rows.Next() {
		var d model.GroundTruthDocument
		err := rows.Scan(&d.ID, &d.DocumentName, &d.OriginalFilename, &d.FilePath,
			&d.Town, &d.County, &d.State, &d.NumberOfZones,
			&d.Complexity, &d.Description, &d.VerifiedBy, &d.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan ground truth doc")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list ground truth docs iterate")
}

func (s *PostgresStore) ReplaceGroundTruthRequirements(ctx context.Context, docID string, reqs []model.GroundTruthRequirement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace ground truth")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM ground_truth_requirements WHERE ground_truth_doc_id = $1`, docID); err != nil {
		return eris.Wrap(err, "postgres: clear ground truth requirements")
	}

	cols := groundTruthColumns()
	insertSQL := fmt.Sprintf(
		`INSERT INTO ground_truth_requirements (%s) VALUES (%s)`,
		strings.Join(cols, ", "), dollarPlaceholders(len(cols)),
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

		if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
			return eris.Wrapf(err, "postgres: insert ground truth zone %s", gt.Zone)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE ground_truth_documents SET number_of_zones = $1 WHERE id = $2`,
		len(reqs), docID); err != nil {
		return eris.Wrap(err, "postgres: update ground truth zone count")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit ground truth requirements")
}

func (s *PostgresStore) ListGroundTruthRequirements(ctx context.Context, docID string) ([]model.GroundTruthRequirement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ground_truth_doc_id, zone, zone_description, `+
			strings.Join(numericColumns(), ", ")+
			`, created_at FROM ground_truth_requirements WHERE ground_truth_doc_id = $1 ORDER BY zone`,
		docID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ground truth requirements")
	}
	defer rows.Close()

	var reqs []model.GroundTruthRequirement
	for rows.Next() {
		var gt model.GroundTruthRequirement
		dests := []any{&gt.ID, &gt.GroundTruthDocID, &gt.Zone, &gt.ZoneDescription}
		dests = append(dests, gt.NumericScanDests()...)
		dests = append(dests, &gt.CreatedAt)
		if err := rows.Scan(dests...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ground truth requirement")
		}
		reqs = append(reqs, gt)
	}
	return reqs, eris.Wrap(rows.Err(), "postgres: list ground truth requirements iterate")
}

// --- districts ---

func (s *PostgresStore) UpsertDistricts(ctx context.Context, districts []model.District) (int64, error) {
	if len(districts) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(districts))
	now := time.Now().UTC()
	for i := range districts {
		d := &districts[i]
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.ImportedAt = now
		rows[i] = []any{d.ID, d.Municipality, d.State, d.Code, d.Name, d.Geometry, d.SourceFile, d.ImportedAt}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "zoning_districts",
		Columns:      []string{"id", "municipality", "state", "code", "name", "geometry", "source_file", "imported_at"},
		ConflictKeys: []string{"municipality", "state", "code"},
		UpdateCols:   []string{"name", "geometry", "source_file", "imported_at"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert districts")
}

func (s *PostgresStore) ListDistricts(ctx context.Context, filter DistrictFilter) ([]model.District, error) {
	query := `SELECT id, municipality, state, code, name, geometry, source_file, imported_at
		FROM zoning_districts WHERE 1=1`
	var args []any

	if filter.Municipality != "" {
		args = append(args, filter.Municipality)
		query += fmt.Sprintf(` AND municipality ILIKE $%d`, len(args))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		query += fmt.Sprintf(` AND state = $%d`, len(args))
	}
	query += ` ORDER BY municipality, code`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list districts")
	}
	defer rows.Close()

	var districts []model.District
	for rows.Next() {
		var d model.District
		if err := rows.Scan(&d.ID, &d.Municipality, &d.State, &d.Code, &d.Name, &d.Geometry, &d.SourceFile, &d.ImportedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "postgres: list districts iterate")
}

// --- dead letter queue ---

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	jobJSON, err := json.Marshal(entry.Job)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dlq job")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue (id, job, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, jobJSON, entry.Error, entry.ErrorType, entry.FailedStage,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, job, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		FROM dead_letter_queue WHERE next_retry_at <= now()`
	var args []any

	if filter.ErrorType != "" {
		args = append(args, filter.ErrorType)
		query += fmt.Sprintf(` AND error_type = $%d`, len(args))
	}
	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var jobJSON []byte
		err := rows.Scan(&e.ID, &jobJSON, &e.Error, &e.ErrorType, &e.FailedStage,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if err := json.Unmarshal(jobJSON, &e.Job); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dlq job")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now() WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: dlq entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: remove dlq %s", id)
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count dlq")
}
