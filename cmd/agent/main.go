package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-yield-bot-go/internal/agent"
	"solana-yield-bot-go/internal/config"
	"solana-yield-bot-go/internal/decisionlog"
	"solana-yield-bot-go/internal/executor"
	"solana-yield-bot-go/internal/logger"
	"solana-yield-bot-go/internal/models"
	"solana-yield-bot-go/internal/observer"
	"solana-yield-bot-go/internal/reporter"
	"solana-yield-bot-go/internal/risk"
	"solana-yield-bot-go/internal/strategy"

	"github.com/joho/godotenv"
)

const sessionReportLimit = 50

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "live", "running mode: live or sim")
	flag.Parse()

	// --- 初始化日志 (提前) ---
	// 加载.env与配置文件之前也需要能记录日志，先用默认配置初始化一次
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	// 钱包地址允许用环境变量覆盖，方便同一份配置跑多个钱包
	if wallet := os.Getenv("WALLET_ADDRESS"); wallet != "" {
		cfg.WalletAddress = wallet
	}

	switch *mode {
	case "live", "sim":
		run(cfg, *mode)
	default:
		logger.S().Fatalf("未知的运行模式: %s。请选择 'live' 或 'sim'。", *mode)
	}
}

// run 组装并运行代理。live 模式把动作提交到交易中继；
// sim 模式观测真实数据但用模拟执行器，永远不触达链上。
func run(cfg *models.Config, mode string) {
	log := logger.S()
	log.Infof("--- 启动资本配置代理 (%s 模式) ---", mode)

	// 利率推送流
	rates := observer.NewRateStream(cfg.RatesWSURL,
		time.Duration(cfg.RateStaleSec)*time.Second, log)
	go rates.Run()
	defer rates.Stop()

	// 观察端
	obs := observer.NewChainObserver(cfg, rates, observer.NewBinancePricer(), log)

	// 执行端
	var exec executor.Executor
	if mode == "live" {
		exec = executor.NewRelayExecutor(cfg.RelayURL, cfg.WalletAddress, log)
	} else {
		exec = executor.NewSimExecutor(log)
	}

	// 决策记录
	decisions, err := decisionlog.NewBadgerLog(cfg.DBPath)
	if err != nil {
		log.Fatalf("无法打开决策数据库 %s: %v", cfg.DBPath, err)
	}
	defer decisions.Close()

	// 风控与策略
	gate := risk.NewGate(cfg, log)
	evaluator := strategy.NewEvaluator(cfg, gate, log)

	a := agent.NewAgent(cfg, obs, gate, evaluator, exec, decisions, log)
	if err := a.Start(); err != nil {
		log.Fatalf("启动代理失败: %v", err)
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infof("收到信号 %v, 正在优雅停机...", sig)

	a.Stop()

	// 退出前打印会话报告
	if err := reporter.PrintSession(decisions, a.LastHealth(), a.LastSnapshot(), sessionReportLimit); err != nil {
		log.Errorf("生成会话报告失败: %v", err)
	}
	log.Info("代理已退出。")
}
