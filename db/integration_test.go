package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/splitdb/testkit"
)

func TestDBMySQL_CreateTables(t *testing.T) {
	conn := testkit.NewMySQLConnector(t)
	database, err := New(&Config{Driver: "mysql"},
		WithMySQLConnector(conn),
		WithLogger(testkit.NewLogger()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	name := "t_order_" + testkit.NewID()
	require.NoError(t, database.CreateTables(ctx, &Order{}, name))
	defer database.DB(ctx).Migrator().DropTable(name)

	tables, err := database.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, name)
}

func TestDBPostgreSQL_CreateTables(t *testing.T) {
	conn := testkit.NewPostgreSQLConnector(t)
	database, err := New(&Config{Driver: "postgresql"},
		WithPostgreSQLConnector(conn),
		WithLogger(testkit.NewLogger()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	names := []string{"t_event_a_" + testkit.NewID(), "t_event_b_" + testkit.NewID()}
	require.NoError(t, database.CreateTables(ctx, &Order{}, names...))

	tables, err := database.ListTables(ctx)
	require.NoError(t, err)
	for _, n := range names {
		assert.Contains(t, tables, n)
	}
}
