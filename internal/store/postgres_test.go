package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	err     error
	status  Status
	created time.Time
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*Status) = r.status
	*dest[1].(*time.Time) = r.created
	return nil
}

type fakePgx struct {
	execTag pgconn.CommandTag
	execErr error
	row     fakeRow
	pingErr error
}

func (f *fakePgx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return f.execTag, f.execErr
}

func (f *fakePgx) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }
func (f *fakePgx) Ping(context.Context) error                       { return f.pingErr }
func (f *fakePgx) Close()                                           {}

func TestPostgresCreateIfAbsentMapping(t *testing.T) {
	tests := []struct {
		name    string
		tag     pgconn.CommandTag
		execErr error
		want    CreateResult
		wantErr bool
	}{
		{name: "row inserted", tag: pgconn.NewCommandTag("INSERT 0 1"), want: ResultCreated},
		{name: "conflict skipped insert", tag: pgconn.NewCommandTag("INSERT 0 0"), want: ResultConflict},
		{name: "exec failure", execErr: errors.New("connection reset"), want: ResultError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Postgres{pool: &fakePgx{execTag: tt.tag, execErr: tt.execErr}}
			got, err := s.CreateIfAbsent(context.Background(), "k1")
			if got != tt.want {
				t.Errorf("CreateIfAbsent() = %v, want %v", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateIfAbsent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresMarkCompletedMapping(t *testing.T) {
	s := &Postgres{pool: &fakePgx{execTag: pgconn.NewCommandTag("UPDATE 1")}}
	if err := s.MarkCompleted(context.Background(), "k1"); err != nil {
		t.Errorf("MarkCompleted() = %v, want nil", err)
	}

	s = &Postgres{pool: &fakePgx{execTag: pgconn.NewCommandTag("UPDATE 0")}}
	if err := s.MarkCompleted(context.Background(), "k1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkCompleted() on absent key = %v, want ErrNotFound", err)
	}

	s = &Postgres{pool: &fakePgx{execErr: errors.New("connection reset")}}
	if err := s.MarkCompleted(context.Background(), "k1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("MarkCompleted() exec failure = %v, want plain error", err)
	}
}

func TestPostgresGetMapping(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := &Postgres{pool: &fakePgx{row: fakeRow{status: StatusCompleted, created: created}}}

	rec, err := s.Get(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if rec.Key != "k1" || rec.Status != StatusCompleted || !rec.CreatedAt.Equal(created) {
		t.Errorf("Get() record = %+v", rec)
	}

	s = &Postgres{pool: &fakePgx{row: fakeRow{err: pgx.ErrNoRows}}}
	if _, err := s.Get(context.Background(), "k1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on absent key = %v, want ErrNotFound", err)
	}
}
