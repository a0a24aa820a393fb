// Package tr передаёт текущую транзакцию через контекст.
package tr

import (
	"context"

	"github.com/DRSN-tech/visual-search/pkg/e"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

type ctxKey struct{}

// WithTx кладёт транзакцию в контекст.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, ctxKey{}, tx)
}

// TxFromCtx извлекает объект транзакции (pgx.Tx) из контекста
func TxFromCtx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(ctxKey{}).(pgx.Tx)
	if !ok {
		return nil, e.ErrTransactionNotFound
	}
	return tx, nil
}

// Runner выполняет функцию внутри транзакции PostgreSQL.
type Runner struct {
	db transaction.Transactional
}

func NewRunner(db transaction.Transactional) *Runner {
	return &Runner{db: db}
}

// WithinTx открывает транзакцию, кладёт её в контекст fn и фиксирует при успехе.
// При ошибке fn транзакция откатывается.
func (r *Runner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	const op = "Runner.WithinTx"

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, r.db)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			_ = tx.Rollback(ctx)
		}
	}()

	pgxTx, ok := tx.Transaction().(pgx.Tx)
	if !ok {
		return e.Wrap(op, e.ErrTransactionNotFound)
	}

	if err = fn(WithTx(ctx, pgxTx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}
