package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion 主要服务地区（刚果民主共和国）
const DefaultRegion = "CD"

// ErrInvalidNumber 手机号格式无效
var ErrInvalidNumber = errors.New("invalid phone number")

// Number 规范化后的手机号
type Number struct {
	E164   string
	Region string
}

// Clean 去除空格、横线、括号等分隔符，保留前导 + 与数字；00 前缀视为国际前缀
func Clean(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + strings.TrimPrefix(cleaned, "00")
	}
	return cleaned
}

// Normalize 解析并校验手机号，输出 E.164 格式与所属地区
func Normalize(raw, defaultRegion string) (Number, error) {
	cleaned := Clean(raw)
	if len(strings.TrimPrefix(cleaned, "+")) < 6 {
		return Number{}, ErrInvalidNumber
	}
	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = DefaultRegion
	}
	parsed, err := phonenumbers.Parse(cleaned, region)
	if err != nil {
		return Number{}, ErrInvalidNumber
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return Number{}, ErrInvalidNumber
	}
	return Number{
		E164:   phonenumbers.Format(parsed, phonenumbers.E164),
		Region: phonenumbers.GetRegionCodeForNumber(parsed),
	}, nil
}

// InRegion 判断号码是否属于指定地区
func (n Number) InRegion(region string) bool {
	return strings.EqualFold(n.Region, strings.TrimSpace(region))
}

// Mask 日志脱敏：保留国家前缀与末四位
func Mask(number string) string {
	cleaned := Clean(number)
	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	head := ""
	if strings.HasPrefix(cleaned, "+") && len(digits) > 7 {
		head = "+" + digits[:3]
		digits = digits[3:]
	}
	return head + strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
