package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/service"
)

// SaveRun persists a run report in a single transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, report *model.RunReport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReport(report); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := report.Summary
	t := sum.Totals
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, period, started_at, elapsed_ms,
			matched, unmatched, manual_review, excluded,
			loaded, rejected, duplicates, out_of_period, complete, incomplete
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.Period.String(), sum.StartedAt, sum.Elapsed.Milliseconds(),
		t.Counts.Matched, t.Counts.Unmatched, t.Counts.ManualReview, t.Counts.Excluded,
		t.Loaded, t.Rejected, t.Duplicates, t.OutOfPeriod, t.Complete, t.Incomplete,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for i, c := range report.Companies {
		if err := saveCompanyTx(ctx, tx, sum.RunID, i, c); err != nil {
			return err
		}
	}

	for _, f := range sum.Failures {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, company, kind, detail) VALUES (?, ?, ?, ?)`,
			sum.RunID, f.Company, string(f.Kind), f.Detail)
		if err != nil {
			return fmt.Errorf("failed to save failure for %s: %w", f.Company, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func saveCompanyTx(ctx context.Context, tx *sql.Tx, runID string, ordinal int, c model.CompanyResult) error {
	s := c.Summary
	_, err := tx.ExecContext(ctx, `
		INSERT INTO company_results (
			run_id, company, ordinal, status, dir,
			matched, unmatched, manual_review, excluded,
			loaded, rejected, duplicates, out_of_period, matched_pairs, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, c.Company.ID, ordinal, string(s.Status), c.Dir,
		s.Counts.Matched, s.Counts.Unmatched, s.Counts.ManualReview, s.Counts.Excluded,
		s.Loaded, s.Rejected, s.Duplicates, s.OutOfPeriod, s.MatchedPairs, s.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save company %s: %w", c.Company.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO classifications (
			run_id, company, seq, bucket, reason, match_reason, origin, source, position,
			document, counterparty, date, amount, description,
			paired_document, paired_date, paired_amount, delta, activity_code,
			plate, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare classification insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for seq, res := range c.Results {
		row := model.RowOf(c.Company, res)
		var pairedDate any
		if !row.PairedDate.IsZero() {
			pairedDate = row.PairedDate
		}
		_, err := stmt.ExecContext(ctx,
			runID, row.Company, seq, string(row.Bucket), string(row.Reason), string(row.MatchReason),
			string(row.Origin), row.Source, row.Index,
			row.Document, row.Counterparty, row.Date, row.Amount, row.Description,
			row.PairedDocument, pairedDate, row.PairedAmount, row.Delta, row.ActivityCode,
			row.Plate, row.Details,
		)
		if err != nil {
			return fmt.Errorf("failed to save classification %d for %s: %w", seq, c.Company.ID, err)
		}
	}
	return nil
}

// ListRuns returns stored runs, newest first. A limit of zero or less
// returns every run.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]service.RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := runSelect + ` ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []service.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run, or common.ErrNotFound.
func (s *SQLiteStorage) LatestRun(ctx context.Context) (*service.RunRecord, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs recorded: %w", common.ErrNotFound)
	}
	return &runs[0], nil
}

// GetRun loads a run with its companies and failures.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*service.RunDetail, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	detail := &service.RunDetail{RunRecord: *run}

	rows, err := s.db.QueryContext(ctx, `
		SELECT company, status, COALESCE(dir, ''),
			matched, unmatched, manual_review, excluded,
			loaded, rejected, duplicates, out_of_period, matched_pairs, elapsed_ms
		FROM company_results WHERE run_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query company results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c service.CompanyRecord
		var status string
		var elapsed int64
		sum := &c.Summary
		if err := rows.Scan(&sum.Company, &status, &c.Dir,
			&sum.Counts.Matched, &sum.Counts.Unmatched, &sum.Counts.ManualReview, &sum.Counts.Excluded,
			&sum.Loaded, &sum.Rejected, &sum.Duplicates, &sum.OutOfPeriod, &sum.MatchedPairs, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan company result: %w", err)
		}
		sum.Status = model.Status(status)
		sum.Elapsed = time.Duration(elapsed) * time.Millisecond
		detail.Companies = append(detail.Companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate company results: %w", err)
	}

	failures, err := s.db.QueryContext(ctx,
		`SELECT company, kind, COALESCE(detail, '') FROM failures WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer func() { _ = failures.Close() }()

	for failures.Next() {
		var f model.Failure
		var kind string
		if err := failures.Scan(&f.Company, &kind, &f.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Kind = model.FailureKind(kind)
		detail.Failures = append(detail.Failures, f)
	}
	if err := failures.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate failures: %w", err)
	}

	return detail, nil
}

// GetClassifications returns the stored rows of a run in result order.
// An empty company or bucket matches all.
func (s *SQLiteStorage) GetClassifications(ctx context.Context, runID, company string, bucket model.Bucket) ([]model.Row, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	if err := validateBucket(bucket); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT company, bucket, reason, COALESCE(match_reason, ''), origin,
			COALESCE(source, ''), COALESCE(position, 0),
			document, counterparty, date, amount, COALESCE(description, ''),
			COALESCE(paired_document, ''), paired_date, paired_amount, delta,
			COALESCE(activity_code, ''), COALESCE(plate, ''), COALESCE(details, '')
		FROM classifications
		WHERE run_id = ? AND (? = '' OR company = ?) AND (? = '' OR bucket = ?)
		ORDER BY id`,
		runID, company, company, string(bucket), string(bucket))
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Row
	for rows.Next() {
		var r model.Row
		var bucketStr, reason, matchReason, origin string
		var pairedDate sql.NullTime
		if err := rows.Scan(&r.Company, &bucketStr, &reason, &matchReason, &origin,
			&r.Source, &r.Index,
			&r.Document, &r.Counterparty, &r.Date, &r.Amount, &r.Description,
			&r.PairedDocument, &pairedDate, &r.PairedAmount, &r.Delta,
			&r.ActivityCode, &r.Plate, &r.Details); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		r.Bucket = model.Bucket(bucketStr)
		r.Reason = model.Reason(reason)
		r.MatchReason = model.Reason(matchReason)
		r.Origin = model.Origin(origin)
		if pairedDate.Valid {
			r.PairedDate = pairedDate.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate classifications: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run and everything recorded under it.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return nil
}

const runSelect = `
	SELECT id, period, started_at, elapsed_ms,
		matched, unmatched, manual_review, excluded,
		loaded, rejected, duplicates, out_of_period, complete, incomplete
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*service.RunRecord, error) {
	var run service.RunRecord
	var period string
	var elapsed int64
	t := &run.Totals
	err := row.Scan(&run.ID, &period, &run.StartedAt, &elapsed,
		&t.Counts.Matched, &t.Counts.Unmatched, &t.Counts.ManualReview, &t.Counts.Excluded,
		&t.Loaded, &t.Rejected, &t.Duplicates, &t.OutOfPeriod, &t.Complete, &t.Incomplete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	p, err := model.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("stored run %s has bad period %q: %w", run.ID, period, err)
	}
	run.Period = p
	run.Elapsed = time.Duration(elapsed) * time.Millisecond
	return &run, nil
}
