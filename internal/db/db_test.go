package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/app?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/app?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/app", migrateURL("postgresql://localhost/app"))
	require.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	ups := 0
	for _, e := range entries {
		if len(e.Name()) > 7 && e.Name()[len(e.Name())-7:] == ".up.sql" {
			ups++
		}
	}
	require.Equal(t, len(entries)/2, ups)
}

func TestErrorClassifiers(t *testing.T) {
	require.True(t, IsNoRows(fmt.Errorf("load: %w", pgx.ErrNoRows)))
	require.False(t, IsNoRows(errors.New("boom")))
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsForeignKeyViolation(fmt.Errorf("x: %w", &pgconn.PgError{Code: "23503"})))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.Equal(t, "", LikePattern(""))
	require.Equal(t, "%abc%", LikePattern("abc"))
}

func TestWithTxWithoutBeginner(t *testing.T) {
	err := WithTx(context.Background(), nil, func(pgx.Tx) error { return nil })
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestWhereBuilder(t *testing.T) {
	var w Where
	require.Equal(t, "", w.SQL())
	w.Add("status = ?", "paid").
		AddIf(false, "customer_id = ?", "skip").
		Add("(name ILIKE ? OR email ILIKE ?)", "%a%").
		Raw("deleted_at IS NULL")
	require.Equal(t, " WHERE status = $1 AND (name ILIKE $2 OR email ILIKE $2) AND deleted_at IS NULL", w.SQL())
	page, args := w.Page(20, 40)
	require.Equal(t, " LIMIT $3 OFFSET $4", page)
	require.Equal(t, []any{"paid", "%a%", 20, 40}, args)
	require.Len(t, w.Args(), 2)

	require.Equal(t, 50, ClampLimit(0, 50, 100))
	require.Equal(t, 100, ClampLimit(500, 50, 100))
	require.Equal(t, 7, ClampLimit(7, 50, 100))
}
