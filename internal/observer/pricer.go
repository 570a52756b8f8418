package observer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
)

// Pricer 提供基础资产的美元标价。
type Pricer interface {
	PriceUSD(ctx context.Context, asset string) (float64, error)
}

// BinancePricer 从币安现货行情获取标价。机会数据源自身的标价可能滞后，
// 估值用中心化交易所的现货价格作为权威来源。
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer 创建行情客户端。行情接口是公开的，不需要密钥。
func NewBinancePricer() *BinancePricer {
	return &BinancePricer{client: binance.NewClient("", "")}
}

// PriceUSD 返回 asset 对 USDT 的最新现货价格。
func (p *BinancePricer) PriceUSD(ctx context.Context, asset string) (float64, error) {
	symbol := asset + "USDT"
	prices, err := p.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取 %s 价格失败: %v", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("行情接口未返回 %s 的价格", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}
