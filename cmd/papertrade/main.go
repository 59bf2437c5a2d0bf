package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raykavin/papertrade/config"
	"github.com/raykavin/papertrade/core"
	"github.com/raykavin/papertrade/download"
	"github.com/raykavin/papertrade/engine"
	"github.com/raykavin/papertrade/logger/zerolog"
	"github.com/raykavin/papertrade/notification"
	"github.com/raykavin/papertrade/oracle"
	"github.com/raykavin/papertrade/storage"
	"github.com/raykavin/papertrade/wallet"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Command line flags
var (
	userID string
	symbol string
	amount float64

	// History command flags
	days       int
	startDate  string
	endDate    string
	timeframe  string
	outputFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "papertrade",
		Short:   "Paper trading simulator for crypto assets",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "Wallet owner id")

	rootCmd.AddCommand(buildBuyCmd())
	rootCmd.AddCommand(buildSellCmd())
	rootCmd.AddCommand(buildWalletCmd())
	rootCmd.AddCommand(buildResetCmd())
	rootCmd.AddCommand(buildHistoryCmd())
	rootCmd.AddCommand(buildWatchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildBuyCmd() *cobra.Command {
	buyCmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy an asset with USD from the wallet balance",
		RunE:  runBuy,
	}

	buyCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Asset symbol (e.g. btc)")
	buyCmd.Flags().Float64VarP(&amount, "amount", "a", 0, "USD amount to spend")

	buyCmd.MarkFlagRequired("symbol")
	buyCmd.MarkFlagRequired("amount")

	return buyCmd
}

func buildSellCmd() *cobra.Command {
	sellCmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell a held asset quantity back into USD",
		RunE:  runSell,
	}

	sellCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Asset symbol (e.g. btc)")
	sellCmd.Flags().Float64VarP(&amount, "quantity", "q", 0, "Asset quantity to sell")

	sellCmd.MarkFlagRequired("symbol")
	sellCmd.MarkFlagRequired("quantity")

	return sellCmd
}

func buildWalletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show the wallet balance, positions and trade summary",
		RunE:  runWallet,
	}
}

func buildResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the wallet to its initial balance",
		RunE:  runReset,
	}
}

func buildHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Download historical price data to CSV",
		RunE:  runHistory,
	}

	historyCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Asset symbol (e.g. btc)")
	historyCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	historyCmd.Flags().StringVar(&startDate, "start", "", "Start date (e.g. 2025-01-01)")
	historyCmd.Flags().StringVar(&endDate, "end", "", "End date (e.g. 2025-06-30)")
	historyCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1h", "Timeframe (e.g. 1h)")
	historyCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./btc.csv)")

	historyCmd.MarkFlagRequired("symbol")
	historyCmd.MarkFlagRequired("output")

	return historyCmd
}

func buildWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live prices and run the Telegram bot",
		RunE:  runWatch,
		Args:  cobra.MinimumNArgs(1),
	}
}

// app bundles the wired application services
type app struct {
	cfg      *config.AppConfig
	log      core.Logger
	storage  core.Storage
	oracle   core.PriceOracle
	wallets  *wallet.Service
	notifier core.NotifierWithStart
	closer   func() error
}

func (a *app) Close() {
	if a.closer != nil {
		if err := a.closer(); err != nil {
			a.log.WithError(err).Warn("failed to close storage")
		}
	}
}

// initializeApp wires configuration, logging, storage, the price oracle and
// the wallet service
func initializeApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return nil, err
	}

	log, err := zerolog.New(cfg.Log.Level, dateTimeLayout, true, cfg.Log.JSONFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	store, closer, err := initializeStorage(cfg)
	if err != nil {
		return nil, err
	}

	priceOracle, err := initializeOracle(cmd, cfg, log)
	if err != nil {
		return nil, err
	}

	tradeEngine := engine.New(
		engine.WithFeeRate(cfg.Market.FeeRate),
		engine.WithSlippageRange(cfg.Market.MinSlippage, cfg.Market.MaxSlippage),
	)

	serviceOptions := []wallet.Option{
		wallet.WithInitialBalance(cfg.Market.InitialBalance),
	}

	application := &app{
		cfg:     cfg,
		log:     log,
		storage: store,
		oracle:  priceOracle,
		closer:  closer,
	}

	application.wallets = wallet.NewService(tradeEngine, priceOracle, store, log, serviceOptions...)

	if cfg.Telegram.Enabled {
		notifier, err := notification.NewTelegram(application.wallets, notification.Settings{
			Token: cfg.Telegram.Token,
			Users: cfg.Telegram.Users,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to start telegram bot: %w", err)
		}

		application.notifier = notifier
		application.wallets.SetNotifier(notifier)
	}

	return application, nil
}

func initializeStorage(cfg *config.AppConfig) (core.Storage, func() error, error) {
	switch cfg.Storage.Backend {
	case "memory":
		store, err := storage.NewFromMemory()
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "buntdb":
		store, err := storage.NewFromFile(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "sqlite":
		store, err := storage.NewFromSQLite(cfg.Storage.Path, storage.DefaultConfig())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func initializeOracle(cmd *cobra.Command, cfg *config.AppConfig, log core.Logger) (core.PriceOracle, error) {
	options := []oracle.BinanceOption{
		oracle.WithQuoteCurrency(cfg.Binance.QuoteCurrency),
	}

	if cfg.Binance.APIKey != "" {
		options = append(options, oracle.WithBinanceCredentials(cfg.Binance.APIKey, cfg.Binance.SecretKey))
	}

	if cfg.Binance.UseTestnet {
		options = append(options, oracle.WithBinanceTestNet())
	}

	return oracle.NewBinance(cmd.Context(), log, options...)
}

func runBuy(cmd *cobra.Command, args []string) error {
	application, err := initializeApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	asset := strings.ToLower(symbol)
	result, err := application.wallets.Buy(cmd.Context(), userID, asset, asset, strings.ToUpper(symbol), amount)
	if err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}

	fmt.Printf("Bought %.8f %s at $%.2f (fee $%.4f, total $%.2f)\n",
		result.Quantity, strings.ToUpper(symbol), result.ExecutedPrice, result.FeeUsd, result.TotalCostUsd)
	fmt.Printf("Balance: $%.2f\n", result.NewBalance)
	return nil
}

func runSell(cmd *cobra.Command, args []string) error {
	application, err := initializeApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	asset := strings.ToLower(symbol)
	result, err := application.wallets.Sell(cmd.Context(), userID, asset, asset, strings.ToUpper(symbol), amount)
	if err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}

	fmt.Printf("Sold %.8f %s at $%.2f (fee $%.4f, proceeds $%.2f)\n",
		result.Quantity, strings.ToUpper(symbol), result.ExecutedPrice, result.FeeUsd, result.TotalCostUsd)
	fmt.Printf("Realized profit: $%.4f\n", *result.RealizedPnl)
	fmt.Printf("Balance: $%.2f\n", result.NewBalance)
	return nil
}

func runWallet(cmd *cobra.Command, args []string) error {
	application, err := initializeApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.wallets.Summary(cmd.Context(), userID)
	if err != nil {
		return err
	}

	fmt.Println(summary.String())

	if histogram := summary.PrintPnlHistogram(); histogram != "" {
		fmt.Println("Realized profit distribution:")
		fmt.Println(histogram)
	}

	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	application, err := initializeApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	snapshot, err := application.wallets.Reset(cmd.Context(), userID)
	if err != nil {
		return err
	}

	fmt.Printf("Wallet reset. Balance: $%.2f\n", snapshot.BalanceUsd)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	application, err := initializeApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	return download.NewDownloader(application.oracle, application.log).Download(
		cmd.Context(),
		symbol,
		timeframe,
		outputFile,
		options...,
	)
}

// runWatch streams live prices for the given symbols and keeps the Telegram
// bot running until interrupted
func runWatch(cmd *cobra.Command, args []string) error {
	application, err := initializeApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	feed := oracle.NewFeedSubscription(application.oracle, application.log)
	for _, watchSymbol := range args {
		feed.Subscribe(watchSymbol, func(point core.PricePoint) {
			application.log.Infof("%s = $%.2f", strings.ToUpper(point.Symbol), point.PriceUsd)
		})
	}

	if application.notifier != nil {
		application.notifier.Start()
	}

	feed.Start(cmd.Context(), false)
	<-cmd.Context().Done()
	return nil
}

func buildDownloadOptions() ([]download.Option, error) {
	var options []download.Option

	if days > 0 {
		options = append(options, download.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("start and end dates must be provided together")
		}

		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date: %w", err)
		}

		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}

		options = append(options, download.WithInterval(start, end))
	}

	return options, nil
}
