package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

// anyArgs returns n AnyArg matchers for statements whose bound values the
// test does not inspect; pgxmock requires the argument count to match.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM extraction_jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get job")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NoRowsIsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM extraction_jobs WHERE id = \$1`).
		WithArgs("absent").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	job, err := s.GetJob(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob_AssignsIDAndStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO extraction_jobs`).
		WithArgs(pgxmock.AnyArg(), "a.pdf", "", "", "Madison", "", "WI", "pending", "",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job := &model.ExtractionJob{Filename: "a.pdf", Town: "Madison", State: "WI"}
	require.NoError(t, s.CreateJob(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE extraction_jobs SET`).
		WithArgs("", "", "", "pending", "", 0, 0, 0, "", int64(0), 0, float64(0),
			pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateJob(context.Background(), &model.ExtractionJob{ID: "gone", Status: model.JobStatusPending})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRequirement_Inserted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO zoning_requirements .+ ON CONFLICT \(town_key, county_key, state_key, zone_key\) DO UPDATE SET .+ RETURNING id, \(xmax = 0\) AS inserted`).
		WithArgs(anyArgs(43)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow("req-1", true))

	req := &model.ZoneRequirement{Town: "Springfield", State: "WI", Zone: "R-1"}
	created, err := s.UpsertRequirement(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, model.DataSourceAIExtracted, req.DataSource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRequirement_Updated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO zoning_requirements`).
		WithArgs(anyArgs(43)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow("existing-id", false))

	req := &model.ZoneRequirement{Town: "Springfield", State: "WI", Zone: "R-1"}
	created, err := s.UpsertRequirement(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, created)
	// The survivor row's id wins so callers track the canonical record.
	assert.Equal(t, "existing-id", req.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordTestResult_Transaction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT total_tests FROM prompt_experiments WHERE id = \$1`).
		WithArgs("exp-1").
		WillReturnRows(pgxmock.NewRows([]string{"total_tests"}).AddRow(4))
	mock.ExpectExec(`INSERT INTO test_results`).
		WithArgs(anyArgs(16)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE prompt_experiments SET`).
		WithArgs(0.75, pgxmock.AnyArg(), "exp-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res := &model.TestResult{
		ExperimentID:     "exp-1",
		GroundTruthDocID: "doc-1",
		Success:          true,
		Scores:           model.AccuracyScores{Overall: 0.75},
	}
	require.NoError(t, s.RecordTestResult(context.Background(), res))
	assert.Equal(t, 5, res.TestEpoch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordTestResult_UnknownExperimentRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT total_tests FROM prompt_experiments WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"total_tests"}))
	mock.ExpectRollback()

	err := s.RecordTestResult(context.Background(), &model.TestResult{ExperimentID: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "experiment not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SummarizeJobs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\),`).
		WillReturnRows(pgxmock.NewRows([]string{
			"total", "pending", "processing", "completed", "failed",
			"zones_saved", "duplicates_skipped", "corrections", "cost",
		}).AddRow(10, 1, 2, 6, 1, 42, 5, 3, 1.25))

	sum, err := s.SummarizeJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Total)
	assert.Equal(t, 6, sum.Completed)
	assert.Equal(t, 42, sum.ZonesSaved)
	assert.InDelta(t, 1.25, sum.TotalCostUSD, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetExperimentActive_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE prompt_experiments SET is_active = \$1`).
		WithArgs(false, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetExperimentActive(context.Background(), "missing", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "experiment not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementDLQRetry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	next := time.Now().Add(time.Hour)
	mock.ExpectExec(`UPDATE dead_letter_queue SET retry_count = retry_count \+ 1`).
		WithArgs(next, "still failing", "dlq-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.IncrementDLQRetry(context.Background(), "dlq-1", next, "still failing"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM dead_letter_queue`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountDLQ(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
