package helper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/go-playground/validator/v10"
)

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 为请求体增加大小限制与解析超时保护
// 已开启 CopyRequestBody 时直接使用缓存的 RequestBody
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	if len(ctx.Input.RequestBody) > 0 {
		return io.LimitReader(bytes.NewReader(ctx.Input.RequestBody), defaultJSONMaxBytes)
	}
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Request-Id")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	return ""
}

// ParseJSON 解析 JSON 请求体并按 validate 标签校验，失败返回 false 与可读错误信息
func ParseJSON[T any](ctx *beegocontext.Context) (T, bool, string) {
	var out T
	if ct := ctx.Input.Header("Content-Type"); ct != "" && !IsJSONContentType(ct) {
		return out, false, "content-type must be application/json"
	}
	if err := json.NewDecoder(jsonBodyReader(ctx)).Decode(&out); err != nil {
		return out, false, "invalid json body"
	}
	if ok, msg := Validate(&out); !ok {
		return out, false, msg
	}
	return out, true, ""
}

// Validate 校验结构体，返回首个失败字段的描述
func Validate(v any) (bool, string) {
	err := validate.Struct(v)
	if err == nil {
		return true, ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return false, "invalid request"
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	if fe.Param() != "" {
		return false, fmt.Sprintf("%s failed on %s=%s", field, fe.Tag(), fe.Param())
	}
	return false, fmt.Sprintf("%s failed on %s", field, fe.Tag())
}

// FlexString 兼容 JSON 字符串与数字（如金额 2 / "2,00"，名次 1 / "1-5"）
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
	}
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexStrings 转为字符串切片
func FlexStrings(in []FlexString) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

// BetLineRequest 投注行
type BetLineRequest struct {
	Modality  string       `json:"modality" validate:"required,max=32"`
	Placement FlexString   `json:"placement" validate:"max=8"`
	Guesses   []FlexString `json:"guesses" validate:"required,min=1,max=100,dive,required,max=8"`
	StakeMode string       `json:"stakeMode" validate:"omitempty,oneof=perGuess flat PERGUESS FLAT perguess"`
	Stake     FlexString   `json:"stake" validate:"required,max=16"`
}

// BetRequest 下注请求
type BetRequest struct {
	Lottery      string           `json:"lottery" validate:"required,max=64"`
	TimeSlotCode string           `json:"timeSlotCode" validate:"required,max=32"`
	DrawDate     string           `json:"drawDate" validate:"omitempty,max=32"`
	Lines        []BetLineRequest `json:"lines" validate:"required,min=1,max=50,dive"`
}

// ResultRequest 发布开奖结果
type ResultRequest struct {
	Lottery      string       `json:"lottery" validate:"required,max=64"`
	TimeSlotCode string       `json:"timeSlotCode" validate:"required,max=32"`
	DrawDate     string       `json:"drawDate" validate:"required,max=32"`
	Numbers      []FlexString `json:"numbers" validate:"required,min=1,max=5,dive,required,max=8"`
}

// ManualSettleRequest 人工结算
type ManualSettleRequest struct {
	ResultID int64  `json:"resultId" validate:"required,gt=0"`
	Action   string `json:"action" validate:"required,oneof=PAY REJECT pay reject"`
	Reason   string `json:"reason" validate:"max=255"`
}

// RecheckRequest 复核（resultId 为空时使用注单已关联的结果）
type RecheckRequest struct {
	ResultID int64 `json:"resultId" validate:"omitempty,gt=0"`
}

// ChargeRequest 创建 PIX 充值单
type ChargeRequest struct {
	Amount        FlexString `json:"amount" validate:"required,max=16"`
	CorrelationID string     `json:"correlationId" validate:"omitempty,max=64"`
}
