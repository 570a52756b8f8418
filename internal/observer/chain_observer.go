package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"solana-yield-bot-go/internal/models"

	"go.uber.org/zap"
)

// ChainObserver 通过收益聚合API读取钱包仓位与机会集，
// 并用利率推送流和现货行情修正报价。
//
// 快照是硬依赖：拿不到仓位就无法决策，Observe 直接失败。
// 机会集是软依赖：任何一类机会拉取失败或数据过期都降级为空集，
// 让本周期在仅有 hold 候选的情况下照常完成。
type ChainObserver struct {
	cfg        *models.Config
	httpClient *http.Client
	rates      *RateStream
	pricer     Pricer
	logger     *zap.SugaredLogger
}

// NewChainObserver 创建链上观察者。rates 和 pricer 允许为 nil，
// 此时相应的修正步骤被跳过。
func NewChainObserver(cfg *models.Config, rates *RateStream, pricer Pricer, logger *zap.SugaredLogger) *ChainObserver {
	return &ChainObserver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		rates:      rates,
		pricer:     pricer,
		logger:     logger,
	}
}

// --- 收益聚合API的响应载荷 ---

type portfolioPayload struct {
	LiquidSOL   float64                   `json:"liquid_sol"`
	SOLPriceUSD float64                   `json:"sol_price_usd"`
	Deposits    []models.DepositPosition  `json:"deposits"`
	Multiplies  []models.MultiplyPosition `json:"multiplies"`
}

type poolsPayload struct {
	AsOf  int64                      `json:"as_of"` // unix秒, 数据生成时间
	Pools []models.SimpleOpportunity `json:"pools"`
}

type marketsPayload struct {
	AsOf    int64                         `json:"as_of"`
	Markets []models.LeveragedOpportunity `json:"markets"`
}

// doRequest 是一个通用的请求处理函数，用于向收益聚合API发送GET请求。
func (o *ChainObserver) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s", o.cfg.YieldAPIURL, endpoint)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %v", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("执行请求失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("API请求失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Observe 拉取快照与机会集。
func (o *ChainObserver) Observe(ctx context.Context) (*models.PortfolioSnapshot, []models.SimpleOpportunity, []models.LeveragedOpportunity, error) {
	snapshot, err := o.fetchPortfolio(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("获取投资组合快照失败: %v", err)
	}

	simples, err := o.fetchPools(ctx)
	if err != nil {
		o.logger.Warnf("获取存款机会失败, 本周期降级为空集: %v", err)
		simples = nil
	}
	levs, err := o.fetchMarkets(ctx)
	if err != nil {
		o.logger.Warnf("获取杠杆机会失败, 本周期降级为空集: %v", err)
		levs = nil
	}

	return snapshot, simples, levs, nil
}

// fetchPortfolio 获取钱包仓位并完成估值。
func (o *ChainObserver) fetchPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	params := url.Values{}
	params.Set("wallet", o.cfg.WalletAddress)
	data, err := o.doRequest(ctx, "/v1/portfolio", params)
	if err != nil {
		return nil, err
	}

	var payload portfolioPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("解析投资组合响应失败: %v", err)
	}

	// 现货行情可用时覆盖聚合API自带的标价
	price := payload.SOLPriceUSD
	if o.pricer != nil {
		if p, err := o.pricer.PriceUSD(ctx, o.cfg.BaseAsset); err != nil {
			o.logger.Warnf("获取 %s 现货价格失败, 沿用聚合API标价 %.2f: %v", o.cfg.BaseAsset, price, err)
		} else {
			price = p
		}
	}
	if price <= 0 {
		return nil, fmt.Errorf("无可用的 %s 标价", o.cfg.BaseAsset)
	}

	snapshot := &models.PortfolioSnapshot{
		Timestamp:   time.Now().UTC(),
		LiquidSOL:   payload.LiquidSOL,
		SOLPriceUSD: price,
		Deposits:    payload.Deposits,
		Multiplies:  payload.Multiplies,
	}
	snapshot.TotalValueUSD = payload.LiquidSOL*price + snapshot.PositionsValueUSD()
	snapshot.RecomputeBlendedYield()
	return snapshot, nil
}

// fetchPools 获取存款机会，过期的整批剔除，新鲜的用推送流的实时利率覆盖。
func (o *ChainObserver) fetchPools(ctx context.Context) ([]models.SimpleOpportunity, error) {
	data, err := o.doRequest(ctx, "/v1/pools", nil)
	if err != nil {
		return nil, err
	}
	var payload poolsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("解析存款机会响应失败: %v", err)
	}
	if o.stale(payload.AsOf) {
		return nil, fmt.Errorf("存款机会数据过期 (as_of=%d)", payload.AsOf)
	}

	if o.rates != nil {
		for i := range payload.Pools {
			key := payload.Pools[i].Protocol + "/" + payload.Pools[i].Pool
			if apy, ok := o.rates.Lookup(key); ok {
				payload.Pools[i].APYPct = apy
			}
		}
	}
	return payload.Pools, nil
}

// fetchMarkets 获取杠杆循环机会。
func (o *ChainObserver) fetchMarkets(ctx context.Context) ([]models.LeveragedOpportunity, error) {
	data, err := o.doRequest(ctx, "/v1/markets", nil)
	if err != nil {
		return nil, err
	}
	var payload marketsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("解析杠杆机会响应失败: %v", err)
	}
	if o.stale(payload.AsOf) {
		return nil, fmt.Errorf("杠杆机会数据过期 (as_of=%d)", payload.AsOf)
	}
	return payload.Markets, nil
}

// stale 判断数据生成时间是否超过配置的最大年龄。
func (o *ChainObserver) stale(asOf int64) bool {
	if asOf == 0 {
		return false
	}
	age := time.Since(time.Unix(asOf, 0))
	return age > time.Duration(o.cfg.RateStaleSec)*time.Second
}
