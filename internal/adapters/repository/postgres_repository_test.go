package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPGErrCode(t *testing.T) {
	dup := fmt.Errorf("insert failed: %w", &pgconn.PgError{Code: "23505"})

	assert.True(t, pgErrCode(dup, "23505"))
	assert.False(t, pgErrCode(dup, "23503"))
	assert.False(t, pgErrCode(errors.New("connection reset"), "23505"))
	assert.False(t, pgErrCode(nil, "23505"))
}
