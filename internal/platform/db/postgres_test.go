package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutDSNDisablesDatabase(t *testing.T) {
	pool, err := New(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.NoError(t, EnsureAuditSchema(context.Background(), pool))
}

func TestNewRejectsInvalidDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

func TestAuditSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range auditSchema {
		assert.True(t, strings.Contains(stmt, "IF NOT EXISTS"), stmt)
	}
}
