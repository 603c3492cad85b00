package mysql

import (
	"context"
	"reflect"

	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// QueryArg goqu 查询参数
type QueryArg struct {
	Table  string                  // table
	Fields []interface{}           // query fields
	Ex     []exp.Expression        // where conditions
	Order  []exp.OrderedExpression // order conditions
	Offset uint                    // offset
	Limit  uint                    // limit
}

// EnumFields 按 db 标签枚举结构体字段，作为查询列
func EnumFields(obj interface{}) []interface{} {
	rt := reflect.TypeOf(obj)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil
	}

	var fields []interface{}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if field := f.Tag.Get("db"); field != "" && field != "-" {
			fields = append(fields, field)
		}
	}
	return fields
}

// SelectAllCtx 生成带占位符的 SELECT 并扫描到 data（切片指针）
func SelectAllCtx(ctx context.Context, q sqlx.QueryerContext, data interface{}, args QueryArg) error {
	if args.Table == "" {
		return errors.New("invalid table")
	}
	if len(args.Fields) == 0 {
		return errors.New("invalid fields")
	}

	ds := dialect.Select(args.Fields...).From(args.Table).Prepared(true)
	if len(args.Ex) > 0 {
		ds = ds.Where(args.Ex...)
	}
	if len(args.Order) > 0 {
		ds = ds.Order(args.Order...)
	}
	if args.Offset > 0 {
		ds = ds.Offset(args.Offset)
	}
	if args.Limit > 0 {
		ds = ds.Limit(args.Limit)
	}

	query, params, err := ds.ToSQL()
	if err != nil {
		return errors.Wrapf(err, "build select %s", args.Table)
	}
	return errors.Wrapf(sqlx.SelectContext(ctx, q, data, query, params...), "select %s", args.Table)
}
