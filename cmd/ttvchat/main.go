package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"ttv-chat/client"
	"ttv-chat/config"
	"ttv-chat/repositories"
)

// Exit codes for the terminal client.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const historyPageSize = 25

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ttvchat error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading, wiring and the receive loop. The
// pattern keeps defers effective and error reporting in one place.
func run() (int, error) {
	channelFlag := flag.String("channel", "", "channel to join (overrides saved state)")
	authFlag := flag.Bool("auth", false, "capture a fresh OAuth token before joining")
	historyFlag := flag.Bool("history", false, "print recent stored messages and exit")
	flag.Parse()

	// 1. Environment and logger. A missing .env is fine.
	_ = godotenv.Load()

	var envCfg EnvConfig
	if _, err := env.UnmarshalFromEnviron(&envCfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(envCfg.LogLevel),
	}))

	// 2. Persisted snapshot, with the CLI channel taking precedence.
	cfg := config.Load(log)
	if *channelFlag != "" {
		cfg.Channel = *channelFlag
	}

	// 3. Message history (BadgerDB).
	historyDir, err := envCfg.historyDir()
	if err != nil {
		return exitConfig, err
	}
	db, err := badger.Open(badger.DefaultOptions(historyDir).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("history store: %w", err)
	}
	defer func() {
		log.Info("Closing history store...")
		_ = db.Close()
	}()
	history := repositories.NewChatHistory(db, log, lo.ToPtr(historyPageSize))

	if *historyFlag {
		history.SetChannel(cfg.Channel)
		return printHistory(history)
	}

	// 4. Context & signals.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. The chat facade.
	chat, err := client.New(cfg,
		client.WithLogger(log),
		client.WithHistory(history),
		client.WithMutedTerms(envCfg.mutedTerms()...),
	)
	if err != nil {
		return exitConfig, err
	}

	if *authFlag {
		if err := chat.FetchAuthToken(ctx); err != nil {
			return exitRuntime, fmt.Errorf("token capture: %w", err)
		}
	}

	if err := chat.Join(cfg.Channel); err != nil {
		return exitConfig, fmt.Errorf("join: %w (set -channel or TTV_CHANNEL)", err)
	}
	cfg.Save(log)
	defer chat.Leave()

	// 6. Stdin lines become outgoing chat lines.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			chat.Send(scanner.Text())
		}
	}()

	// 7. Receive loop until Ctrl+C.
	for {
		msg, err := chat.Receive(ctx)
		if err != nil {
			log.Info("Stopping client...")
			return exitOK, nil
		}
		author := msg.Author
		if msg.Color != nil {
			author = color.HEX(*msg.Color).Sprint(author)
		}
		fmt.Printf("%s: %s\n", author, msg.Content)
	}
}

// printHistory renders the newest stored messages for the configured
// channel as a table.
func printHistory(history *repositories.ChatHistory) (int, error) {
	messages, _, err := history.Recent(nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("reading history: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Author", "Message"})
	for _, msg := range messages {
		table.Append([]string{
			msg.At.Format(time.DateTime),
			msg.Author,
			msg.Content,
		})
	}
	table.Render()
	return exitOK, nil
}
