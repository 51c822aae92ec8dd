// 固定汇率换算：加密资产、Telegram Stars 与本币（卢布）之间的金额转换，
// 以及平台加价的卖价计算。汇率在进程启动时从配置读入，运行期只读。
package exchange

import (
	"math"

	"github.com/shopspring/decimal"
)

// ToCrypto 本币 → 加密资产，保留两位小数
func ToCrypto(fiat decimal.Decimal, rate float64) decimal.Decimal {
	return fiat.Div(decimal.NewFromFloat(rate)).Round(2)
}

// ToFiat 加密资产 → 本币，四舍五入到整数单位
func ToFiat(crypto decimal.Decimal, rate float64) decimal.Decimal {
	return crypto.Mul(decimal.NewFromFloat(rate)).Round(0)
}

// ToStars 本币 → Stars 数量，向上取整（多收不少收）
func ToStars(fiat decimal.Decimal, stars, rub int) int {
	perRub := float64(stars) / float64(rub)
	v, _ := fiat.Float64()
	return int(math.Ceil(v * perRub))
}

// FromStars Stars 数量 → 本币，四舍五入到整数单位
func FromStars(count, stars, rub int) decimal.Decimal {
	return decimal.NewFromInt(int64(count)).
		Mul(decimal.NewFromInt(int64(rub))).
		Div(decimal.NewFromInt(int64(stars))).
		Round(0)
}

// PriceWithFee 平台卖价 = 进价 + 进价×加成，向上保留一位小数
func PriceWithFee(cost decimal.Decimal, fee float64) decimal.Decimal {
	raw := cost.Add(cost.Mul(decimal.NewFromFloat(fee)))
	v, _ := raw.Float64()
	return decimal.NewFromFloat(math.Ceil(v*10) / 10)
}

// ReferralCut 返佣金额 = 充值额×比例，四舍五入到整数单位
// 不足一个整数单位时舍弃，零不入账
func ReferralCut(deposit decimal.Decimal, fee float64) decimal.Decimal {
	if fee <= 0 {
		return decimal.Zero
	}
	return deposit.Mul(decimal.NewFromFloat(fee)).Round(0)
}
