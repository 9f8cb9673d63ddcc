package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/repository"
)

var _ repository.ChallengeRepository = (*PostgresChallengeRepo)(nil)

// PostgresChallengeRepo stores each challenge as a row with its submission
// calendar embedded as a JSONB document. Per-day updates load the document,
// patch it in memory and write it back; MarkRefundChecked does this under
// FOR UPDATE so concurrent pre-billing checks serialize on the row.
type PostgresChallengeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresChallengeRepo(pool *pgxpool.Pool) *PostgresChallengeRepo {
	return &PostgresChallengeRepo{pool: pool}
}

func (r *PostgresChallengeRepo) Save(ctx context.Context, qx repository.Tx, c *model.Challenge) error {
	cal, err := json.Marshal(c.Calendar)
	if err != nil {
		return fmt.Errorf("marshal calendar: %w", err)
	}
	const q = `
INSERT INTO challenges (
  id, user_id, status, start_date, end_date,
  weekdays, deadline_time, timezone, created_at, calendar
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (id) DO UPDATE SET
  status=$3, calendar=$10;
`
	_, err = execSQL(ctx, r.pool, qx, q,
		c.ID, c.UserID, string(c.Status), c.StartDate, c.EndDate,
		c.Weekdays, c.DeadlineTime, c.Timezone, c.CreatedAt, cal)
	return err
}

func (r *PostgresChallengeRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Challenge, error) {
	const q = challengeSelectCols + ` FROM challenges WHERE id=$1;`
	return scanChallenge(pickRow(ctx, r.pool, qx, q, id))
}

func (r *PostgresChallengeRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Challenge, error) {
	const q = challengeSelectCols + ` FROM challenges WHERE user_id=$1 ORDER BY created_at ASC;`
	rows, err := pickRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresChallengeRepo) CountByUser(ctx context.Context, qx repository.Tx, userID string) (int, error) {
	row := pickRow(ctx, r.pool, qx, `SELECT COUNT(*) FROM challenges WHERE user_id=$1;`, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count challenges: %w", err)
	}
	return n, nil
}

func (r *PostgresChallengeRepo) UpdateDay(ctx context.Context, qx repository.Tx, challengeID string, day model.SubmissionDay) error {
	cal, err := r.lockCalendar(ctx, qx, challengeID)
	if err != nil {
		return err
	}
	found := false
	for i := range cal {
		if cal[i].TargetDate == day.TargetDate {
			cal[i] = day
			found = true
			break
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	return r.writeCalendar(ctx, qx, challengeID, cal)
}

// MarkRefundChecked stamps refundCheckPeriod on the given dates, skipping any
// day that already carries a marker, and reports how many it marked. Callers
// run it inside a transaction; the FOR UPDATE read makes the stamp a
// first-writer-wins race between concurrent checks.
func (r *PostgresChallengeRepo) MarkRefundChecked(ctx context.Context, qx repository.Tx, challengeID string, targetDates []string, period string) (int, error) {
	if len(targetDates) == 0 {
		return 0, nil
	}
	cal, err := r.lockCalendar(ctx, qx, challengeID)
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]struct{}, len(targetDates))
	for _, d := range targetDates {
		wanted[d] = struct{}{}
	}
	marked := 0
	for i := range cal {
		if _, ok := wanted[cal[i].TargetDate]; !ok {
			continue
		}
		if cal[i].RefundCheckPeriod != "" {
			continue
		}
		cal[i].RefundCheckPeriod = period
		marked++
	}
	if marked == 0 {
		return 0, nil
	}
	if err := r.writeCalendar(ctx, qx, challengeID, cal); err != nil {
		return 0, err
	}
	return marked, nil
}

func (r *PostgresChallengeRepo) ListWithOverduePending(ctx context.Context, qx repository.Tx, before time.Time, limit int) ([]*model.Challenge, error) {
	const q = challengeSelectCols + `
  FROM challenges
 WHERE status=$1
   AND EXISTS (
         SELECT 1 FROM jsonb_array_elements(calendar) AS d
          WHERE d->>'status'='pending'
            AND (d->>'deadline')::timestamptz < $2
       )
 ORDER BY created_at ASC
 LIMIT $3;
`
	rows, err := pickRows(ctx, r.pool, qx, q, string(model.ChallengeStatusActive), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresChallengeRepo) lockCalendar(ctx context.Context, qx repository.Tx, challengeID string) ([]model.SubmissionDay, error) {
	row := pickRow(ctx, r.pool, qx, `SELECT calendar FROM challenges WHERE id=$1 FOR UPDATE;`, challengeID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, err
	}
	var cal []model.SubmissionDay
	if err := json.Unmarshal(raw, &cal); err != nil {
		return nil, fmt.Errorf("unmarshal calendar: %w", err)
	}
	return cal, nil
}

func (r *PostgresChallengeRepo) writeCalendar(ctx context.Context, qx repository.Tx, challengeID string, cal []model.SubmissionDay) error {
	raw, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("marshal calendar: %w", err)
	}
	_, err = execSQL(ctx, r.pool, qx, `UPDATE challenges SET calendar=$2 WHERE id=$1;`, challengeID, raw)
	return err
}

const challengeSelectCols = `
SELECT id, user_id, status, start_date, end_date,
       weekdays, deadline_time, timezone, created_at, calendar`

func scanChallenge(row pgx.Row) (*model.Challenge, error) {
	var c model.Challenge
	var status string
	var raw []byte
	if err := row.Scan(&c.ID, &c.UserID, &status, &c.StartDate, &c.EndDate,
		&c.Weekdays, &c.DeadlineTime, &c.Timezone, &c.CreatedAt, &raw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c.Status = model.ChallengeStatus(status)
	if err := json.Unmarshal(raw, &c.Calendar); err != nil {
		return nil, fmt.Errorf("unmarshal calendar: %w", err)
	}
	return &c, nil
}
