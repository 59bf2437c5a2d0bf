// Package notification provides implementations for various notification services
package notification

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/papertrade/core"
	"github.com/raykavin/papertrade/wallet"
)

// Command pattern regex for buy and sell commands
var (
	buyRegexp  = regexp.MustCompile(`/buy\s+(?P<symbol>\w+)\s+(?P<amount>\d+(?:\.\d+)?)`)
	sellRegexp = regexp.MustCompile(`/sell\s+(?P<symbol>\w+)\s+(?P<amount>\d+(?:\.\d+)?)(?P<percent>%)?`)
)

// Settings holds the Telegram bot credentials and the authorized users
type Settings struct {
	Token string
	Users []int64
}

// Telegram implements the core.NotifierWithStart interface
type telegram struct {
	settings    Settings
	wallets     *wallet.Service
	log         core.Logger
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
}

// Option is a function that configures a telegram instance
type Option func(telegram *telegram)

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(wallets *wallet.Service, settings Settings, log core.Logger, options ...Option) (core.NotifierWithStart, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	userMiddleware := createAuthMiddleware(poller, settings, log)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &telegram{
		wallets:     wallets,
		client:      client,
		settings:    settings,
		log:         log,
		defaultMenu: menu,
	}

	for _, option := range options {
		option(bot)
	}

	registerHandlers(client, bot)

	return bot, nil
}

// createAuthMiddleware creates a middleware to validate authorized users
func createAuthMiddleware(poller *tb.LongPoller, settings Settings, log core.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(settings.Users, u.Message.Sender.ID) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		balanceBtn = menu.Text("/balance")
		profitBtn  = menu.Text("/profit")
		buyBtn     = menu.Text("/buy")
		sellBtn    = menu.Text("/sell")
		resetBtn   = menu.Text("/reset")
	)

	menu.Reply(
		menu.Row(balanceBtn, profitBtn),
		menu.Row(buyBtn, sellBtn, resetBtn),
	)
}

// setupCommands configures available bot commands
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/balance", Description: "Wallet balance and open positions"},
		{Text: "/profit", Description: "Summary of trade results"},
		{Text: "/buy", Description: "Buy an asset with USD"},
		{Text: "/sell", Description: "Sell a held asset quantity"},
		{Text: "/reset", Description: "Reset the wallet to its initial balance"},
	})
}

// registerHandlers registers all command handlers
func registerHandlers(client *tb.Bot, bot *telegram) {
	client.Handle("/help", bot.HelpHandle)
	client.Handle("/balance", bot.BalanceHandle)
	client.Handle("/profit", bot.ProfitHandle)
	client.Handle("/buy", bot.BuyHandle)
	client.Handle("/sell", bot.SellHandle)
	client.Handle("/reset", bot.ResetHandle)
}

// Start begins the Telegram bot and notifies all authorized users
func (t *telegram) Start() {
	go t.client.Start()
	t.sendMessageWithOptions("Paper trading bot initialized.", t.defaultMenu)
}

// Notify sends a message to all authorized users
func (t *telegram) Notify(text string) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: user}, text)
		if err != nil {
			t.log.WithError(err).Error("failed to send notification")
		}
	}
}

// sendMessageWithOptions sends a message to all authorized users with additional options
func (t *telegram) sendMessageWithOptions(text string, options ...interface{}) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: user}, text, options...)
		if err != nil {
			t.log.WithError(err).Error("failed to send notification with options")
		}
	}
}

// sendMessage sends a message to a specific user
func (t *telegram) sendMessage(to *tb.User, text string, options ...interface{}) {
	_, err := t.client.Send(to, text, options...)
	if err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// walletID maps a Telegram sender to its wallet
func walletID(sender *tb.User) string {
	return strconv.FormatInt(sender.ID, 10)
}

// BalanceHandle shows the free balance and open positions
func (t *telegram) BalanceHandle(m *tb.Message) {
	ctx := context.Background()

	snapshot, err := t.wallets.Wallet(ctx, walletID(m.Sender))
	if err != nil {
		t.OnError(err)
		return
	}

	equity, err := t.wallets.Equity(ctx, walletID(m.Sender))
	if err != nil {
		t.OnError(err)
		return
	}

	var sb strings.Builder
	sb.WriteString("*BALANCE*\n")
	fmt.Fprintf(&sb, "USD: `%.2f`\n", snapshot.BalanceUsd)
	for _, position := range snapshot.Positions {
		fmt.Fprintf(&sb, "%s: `%.8f` @ `%.2f`\n",
			strings.ToUpper(position.Symbol), position.Quantity, position.AvgBuyPriceUsd)
	}
	fmt.Fprintf(&sb, "-----\nEquity: `%.2f`\n", equity)

	t.sendMessage(m.Sender, sb.String())
}

// ProfitHandle shows the trade performance summary
func (t *telegram) ProfitHandle(m *tb.Message) {
	summary, err := t.wallets.Summary(context.Background(), walletID(m.Sender))
	if err != nil {
		t.OnError(err)
		return
	}

	if len(summary.Assets) == 0 {
		t.sendMessage(m.Sender, "No trades registered.")
		return
	}

	t.sendMessage(m.Sender, fmt.Sprintf("`%s`", summary.String()))
}

// BuyHandle processes buy commands
func (t *telegram) BuyHandle(m *tb.Message) {
	match := buyRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExample of usage:\n`/buy BTC 100`")
		return
	}

	command := extractCommandParams(buyRegexp, match)
	symbol := strings.ToLower(command["symbol"])
	amount, err := strconv.ParseFloat(command["amount"], 64)
	if err != nil {
		t.OnError(fmt.Errorf("failed to parse amount: %w", err))
		return
	}

	result, err := t.wallets.Buy(context.Background(), walletID(m.Sender), symbol, symbol, strings.ToUpper(symbol), amount)
	if err != nil {
		t.OnError(err)
		return
	}

	if !result.Success {
		t.sendMessage(m.Sender, result.Error)
		return
	}

	t.sendMessage(m.Sender, fmt.Sprintf("Bought `%.8f` %s at `%.2f` (fee `%.4f`)",
		result.Quantity, strings.ToUpper(symbol), result.ExecutedPrice, result.FeeUsd))
}

// SellHandle processes sell commands
func (t *telegram) SellHandle(m *tb.Message) {
	match := sellRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExamples of usage:\n`/sell BTC 0.5`\n\n`/sell BTC 100%`")
		return
	}

	command := extractCommandParams(sellRegexp, match)
	symbol := strings.ToLower(command["symbol"])
	amount, err := strconv.ParseFloat(command["amount"], 64)
	if err != nil {
		t.OnError(fmt.Errorf("failed to parse amount: %w", err))
		return
	}

	ctx := context.Background()

	// Percentage sells are resolved against the held quantity
	if command["percent"] != "" {
		snapshot, err := t.wallets.Wallet(ctx, walletID(m.Sender))
		if err != nil {
			t.OnError(err)
			return
		}

		position := snapshot.Position(symbol)
		if position == nil {
			t.sendMessage(m.Sender, fmt.Sprintf("No %s position.", strings.ToUpper(symbol)))
			return
		}

		amount = position.Quantity * amount / 100.0
	}

	result, err := t.wallets.Sell(ctx, walletID(m.Sender), symbol, symbol, strings.ToUpper(symbol), amount)
	if err != nil {
		t.OnError(err)
		return
	}

	if !result.Success {
		t.sendMessage(m.Sender, result.Error)
		return
	}

	t.sendMessage(m.Sender, fmt.Sprintf("Sold `%.8f` %s at `%.2f`, profit `%.4f`",
		result.Quantity, strings.ToUpper(symbol), result.ExecutedPrice, *result.RealizedPnl))
}

// ResetHandle restores the wallet to its initial balance
func (t *telegram) ResetHandle(m *tb.Message) {
	snapshot, err := t.wallets.Reset(context.Background(), walletID(m.Sender))
	if err != nil {
		t.OnError(err)
		return
	}

	t.sendMessage(m.Sender, fmt.Sprintf("Wallet reset. Balance: `%.2f`", snapshot.BalanceUsd), t.defaultMenu)
}

// HelpHandle displays available commands
func (t *telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// OnTrade notifies the wallet owner about an executed trade. Wallets are
// per-sender, so the message goes to the owning user only; trades for
// wallets not tied to a Telegram sender are broadcast instead.
func (t *telegram) OnTrade(trade core.Trade) {
	message := formatTradeMessage(trade)

	if owner, ok := t.tradeOwner(trade); ok {
		t.sendMessage(owner, message)
		return
	}

	t.Notify(message)
}

// tradeOwner resolves the trade's wallet id back to its authorized sender
func (t *telegram) tradeOwner(trade core.Trade) (*tb.User, bool) {
	id, err := strconv.ParseInt(trade.UserID, 10, 64)
	if err != nil {
		return nil, false
	}

	if !slices.Contains(t.settings.Users, id) {
		return nil, false
	}

	return &tb.User{ID: id}, true
}

// formatTradeMessage renders an executed trade as a markdown message
func formatTradeMessage(trade core.Trade) string {
	var title string
	if trade.IsBuy() {
		title = fmt.Sprintf("🟢 BUY - %s", strings.ToUpper(trade.Symbol))
	} else {
		title = fmt.Sprintf("🔴 SELL - %s", strings.ToUpper(trade.Symbol))
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n-----\n")
	fmt.Fprintf(&sb, "Quantity: `%.8f`\n", trade.Quantity)
	fmt.Fprintf(&sb, "Price: `%.2f`\n", trade.PriceUsd)
	fmt.Fprintf(&sb, "Fee: `%.4f`\n", trade.FeeUsd)
	if trade.RealizedPnlUsd != nil {
		fmt.Fprintf(&sb, "Profit: `%.4f`\n", *trade.RealizedPnlUsd)
	}

	return sb.String()
}

// OnError notifies users about errors
func (t *telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n")
	sb.WriteString("-----\n")
	sb.WriteString(err.Error())

	t.Notify(sb.String())
}

// Helper function to extract named groups from regex matches
func extractCommandParams(regex *regexp.Regexp, match []string) map[string]string {
	command := make(map[string]string)
	for i, name := range regex.SubexpNames() {
		if i != 0 && name != "" {
			command[name] = match[i]
		}
	}
	return command
}
