package persistence

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/attendance-sync/pkg/composables"
)

func numeric(unscaled int64, exp int32) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(unscaled), Exp: exp, Valid: true}
}

func TestEmployeeRepository_GetByIDs_OrdersAndMaps(t *testing.T) {
	ids := []string{"b", "a"}
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM employees")
			require.Contains(t, sql, "ORDER BY last_name")
			require.Equal(t, ids, args[0])
			return &stubRows{data: [][]any{
				{"a", "Ada", "Lovelace", numeric(800, -2)},
				{"b", "Alan", "Turing", numeric(75, -1)},
			}}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewEmployeeRepository().GetByIDs(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Ada Lovelace", got[0].DisplayName())
	require.Equal(t, "8", got[0].MinHours().String())
	require.Equal(t, "7.5", got[1].MinHours().String())
}

func TestEmployeeRepository_GetByIDs_EmptyFilterSkipsQuery(t *testing.T) {
	tx := &stubTx{}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewEmployeeRepository().GetByIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEmployeeRepository_GetByIDs_WrapsQueryError(t *testing.T) {
	boom := errors.New("connection reset")
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, boom
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	_, err := NewEmployeeRepository().GetByIDs(ctx, []string{"a"})
	require.ErrorIs(t, err, boom)
}

func TestEmployeeRepository_GetByIDs_RejectsNaN(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &stubRows{data: [][]any{
				{"a", "Ada", "Lovelace", pgtype.Numeric{NaN: true, Valid: true}},
			}}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	_, err := NewEmployeeRepository().GetByIDs(ctx, []string{"a"})
	require.Error(t, err)
}

func TestEmployeeRepository_NoPool(t *testing.T) {
	_, err := NewEmployeeRepository().GetByIDs(context.Background(), []string{"a"})
	require.ErrorIs(t, err, composables.ErrNoPool)
}

type stubTx struct {
	queryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("copy not implemented")
}

func (s *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	var results pgx.BatchResults
	return results
}

func (s *stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

type stubRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return errors.New("no current row to scan")
	}
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("destination length %d does not match row length %d", len(dest), len(row))
	}
	for i, target := range dest {
		switch v := target.(type) {
		case *string:
			*v = row[i].(string)
		case *pgtype.Numeric:
			*v = row[i].(pgtype.Numeric)
		default:
			return fmt.Errorf("unsupported scan target %T", target)
		}
	}
	return nil
}

func (r *stubRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.idx-1], nil
}

func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Err() error          { return r.err }
func (r *stubRows) Close()              {}
func (r *stubRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }
