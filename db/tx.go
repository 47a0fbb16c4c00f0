package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

type txState struct {
	tx    *gorm.DB
	after []func()
}

// Transaction runs fn inside a transaction on conn. Code called from fn
// reaches the transaction through Conn. A Transaction started while one is
// already in ctx joins it.
func Transaction(ctx context.Context, conn *gorm.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}
	st := &txState{}
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st.tx = tx
		return fn(context.WithValue(ctx, txKey{}, st))
	})
	if err != nil {
		return err
	}
	for _, f := range st.after {
		f()
	}
	return nil
}

// Conn returns the transaction carried by ctx, or fallback bound to ctx.
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return fallback.WithContext(ctx)
}

// AfterCommit runs fn once the transaction in ctx commits, or right away
// when there is none. fn is dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.after = append(st.after, fn)
		return
	}
	fn()
}
