package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-eval-service/internal/domain"
)

// RecordStore writes evaluation records to one table per domain collection.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) Create(ctx context.Context, d domain.Domain, rec domain.Record) error {
	table, err := tableFor(d)
	if err != nil {
		return err
	}
	if rec.Domain == "" {
		rec.Domain = d
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (question_name, correct_boolean, response_time_ms, domain, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.QuestionName, rec.CorrectBoolean, rec.ResponseTimeMs, string(rec.Domain), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert %s record: %w", d.Collection(), err)
	}
	return nil
}

func (s *RecordStore) Count(ctx context.Context, d domain.Domain, correct bool) (int, error) {
	table, err := tableFor(d)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM `+table+` WHERE correct_boolean = $1`, correct).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", d.Collection(), err)
	}
	return n, nil
}

func (s *RecordStore) ResponseTimes(ctx context.Context, d domain.Domain) ([]int64, error) {
	table, err := tableFor(d)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT response_time_ms FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.Collection(), err)
	}
	defer rows.Close()

	times := []int64{}
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.Collection(), err)
		}
		times = append(times, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", d.Collection(), err)
	}
	return times, nil
}

// tableFor quotes the collection name; only registered domains resolve.
func tableFor(d domain.Domain) (string, error) {
	collection := d.Collection()
	if collection == "" {
		return "", domain.ErrUnknownDomain
	}
	return pgx.Identifier{collection}.Sanitize(), nil
}
