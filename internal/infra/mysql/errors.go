package mysql

import (
	"errors"
	"strings"

	driver "github.com/go-sql-driver/mysql"
)

// ErDupEntry MySQL 唯一键冲突错误码
const ErDupEntry = 1062

// IsDuplicateKey 判断是否为唯一键冲突
// 唯一键冲突是幂等/去重的信号本身，而不是需要上报的故障
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *driver.MySQLError
	if errors.As(err, &me) {
		return me.Number == ErDupEntry
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
