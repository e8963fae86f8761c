package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	if !IsUniqueViolation(unique) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(fk) {
		t.Error("23503 is not a unique violation")
	}
	if !IsForeignKeyViolation(fk) {
		t.Error("expected 23503 to be a foreign key violation")
	}
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to be detected")
	}
	if IsNoRows(unique) {
		t.Error("unique violation is not an empty result")
	}
}

func TestTxRunner_CommitsAndCarriesTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO person").WithArgs(1).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO patients").WithArgs(1).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	runner := NewTxRunner(mock)
	err = runner.RunInTx(context.Background(), func(ctx context.Context) error {
		if Conn(ctx, mock) == Querier(mock) {
			t.Error("expected the transaction, not the pool")
		}
		if _, err := Conn(ctx, mock).Exec(ctx, "INSERT INTO person (id) VALUES ($1)", 1); err != nil {
			return err
		}
		return runner.RunInTx(ctx, func(ctx context.Context) error {
			_, err := Conn(ctx, mock).Exec(ctx, "INSERT INTO patients (id) VALUES ($1)", 1)
			return err
		})
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTxRunner_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewTxRunner(mock).RunInTx(context.Background(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestConn_FallsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	if Conn(context.Background(), mock) != Querier(mock) {
		t.Error("expected fallback querier without a transaction")
	}
}
