package mysql

import (
	"errors"
	"fmt"
	"testing"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCASToSQL(t *testing.T) {
	c := CAS{
		Table: "accounts",
		Set: g.Record{
			"balance": Decr("balance", "2.00"),
			"bonus":   Decr("bonus", "0.00"),
		},
		Guard: []exp.Expression{
			g.C("id").Eq(7),
			g.C("balance").Gte(Money("2.00")),
			g.C("bonus").Gte(Money("0.00")),
		},
	}
	query, args, err := c.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE `accounts` SET `balance`=`balance` - CAST(? AS DECIMAL(18,2)),`bonus`=`bonus` - CAST(? AS DECIMAL(18,2)) "+
			"WHERE ((`id` = ?) AND (`balance` >= CAST(? AS DECIMAL(18,2))) AND (`bonus` >= CAST(? AS DECIMAL(18,2))))",
		query)
	assert.Equal(t, []interface{}{"2.00", "0.00", int64(7), "2.00", "0.00"}, args)
}

func TestCASRequiresGuard(t *testing.T) {
	_, _, err := CAS{Table: "bets", Set: g.Record{"status": "won"}}.ToSQL()
	assert.Error(t, err)

	_, _, err = CAS{Set: g.Record{"status": "won"}, Guard: []exp.Expression{g.C("id").Eq(1)}}.ToSQL()
	assert.Error(t, err)
}

func TestCASIsNullGuard(t *testing.T) {
	query, args, err := CAS{
		Table: "bets",
		Set:   g.Record{"status": "won"},
		Guard: []exp.Expression{g.C("id").Eq(1), g.C("prize_credited_at").IsNull()},
	}.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `bets` SET `status`=? WHERE ((`id` = ?) AND (`prize_credited_at` IS NULL))", query)
	assert.Equal(t, []interface{}{"won", int64(1)}, args)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&driver.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'uk'"}))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", &driver.MySQLError{Number: 1062})))
	assert.True(t, IsDuplicateKey(errors.New("UNIQUE constraint failed: webhook_events.provider, webhook_events.event_id")))
	assert.False(t, IsDuplicateKey(&driver.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicateKey(nil))
}
