package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-yield-bot-go/internal/models"

	"go.uber.org/zap"
)

// RelayExecutor 把动作提交给交易中继服务，由中继负责构造、签名和落地交易。
// 中继同步等待确认，所以这里的超时要显著长于普通查询。
type RelayExecutor struct {
	relayURL   string
	wallet     string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewRelayExecutor(relayURL, wallet string, logger *zap.SugaredLogger) *RelayExecutor {
	return &RelayExecutor{
		relayURL:   relayURL,
		wallet:     wallet,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     logger,
	}
}

type relayRequest struct {
	Wallet string              `json:"wallet"`
	Action models.Action       `json:"action"`
	Params models.ActionParams `json:"params"`
}

type relayResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// Execute 提交动作并等待中继确认。
func (e *RelayExecutor) Execute(ctx context.Context, action models.Action, params models.ActionParams) (string, error) {
	if action == models.ActionHold {
		return "", fmt.Errorf("hold 动作不应提交到执行端")
	}

	payload, err := json.Marshal(relayRequest{Wallet: e.wallet, Action: action, Params: params})
	if err != nil {
		return "", fmt.Errorf("序列化执行请求失败: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.relayURL+"/v1/execute", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("创建执行请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	e.logger.Infof("提交动作到交易中继: action=%s", action)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("执行请求失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取中继响应失败: %v", err)
	}

	var result relayResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("解析中继响应失败 (状态码 %d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK || result.Error != "" {
		return "", fmt.Errorf("中继拒绝执行 (状态码 %d): %s", resp.StatusCode, result.Error)
	}
	if result.Signature == "" {
		return "", fmt.Errorf("中继未返回交易签名")
	}

	e.logger.Infof("动作执行成功: action=%s signature=%s", action, result.Signature)
	return result.Signature, nil
}
