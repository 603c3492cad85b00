package mysql

import (
	"context"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var dialect = g.Dialect("mysql")

// CAS 条件更新（compare-and-swap）：
// 只有当 Guard 中所有谓词在写入时刻都成立时，Set 才会生效
// 所有资金相关的状态变更（余额扣减、注单结算、充值入账）都通过 CAS 完成
type CAS struct {
	Table string
	Set   g.Record
	Guard []exp.Expression
}

// ToSQL 生成带占位符的 UPDATE 语句
func (c CAS) ToSQL() (string, []interface{}, error) {
	if c.Table == "" || len(c.Set) == 0 {
		return "", nil, errors.New("cas: empty table or set")
	}
	if len(c.Guard) == 0 {
		return "", nil, errors.New("cas: missing guard predicate")
	}
	return dialect.Update(c.Table).Prepared(true).Set(c.Set).Where(c.Guard...).ToSQL()
}

// Exec 执行条件更新，返回是否命中（affected rows > 0）
// 未命中表示守卫谓词不成立：余额不足、已结算、已入账等，由调用方解释
func (c CAS) Exec(ctx context.Context, exec sqlx.ExecerContext) (bool, error) {
	query, args, err := c.ToSQL()
	if err != nil {
		return false, err
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrapf(err, "cas update %s", c.Table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "cas rows affected")
	}
	return n > 0, nil
}

// Money 金额参数按定点小数绑定，避免 MySQL 将字符串参数按 DOUBLE 参与运算
func Money(v string) exp.LiteralExpression {
	return g.L("CAST(? AS DECIMAL(18,2))", v)
}

// Incr 生成 `col + CAST(? AS DECIMAL(18,2))` 表达式
func Incr(col string, v string) exp.LiteralExpression {
	return g.L("? + ?", g.C(col), Money(v))
}

// Decr 生成 `col - CAST(? AS DECIMAL(18,2))` 表达式
func Decr(col string, v string) exp.LiteralExpression {
	return g.L("? - ?", g.C(col), Money(v))
}
