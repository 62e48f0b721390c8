package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"supportdesk/backend/internal/assistant"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/storage"
	"supportdesk/backend/internal/support"
	"supportdesk/backend/internal/telegram"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const commandTimeout = 30 * time.Second

// offlineGenerator stands in for text generation; the admin commands never ask for a reply.
type offlineGenerator struct{}

func (offlineGenerator) Generate(context.Context, string, []assistant.Turn) (string, error) {
	return "", errors.New("text generation is not available in the admin CLI")
}

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  show <conversation_id>")
	fmt.Println("  set-status <conversation_id> <open|pending|resolved|closed>")
	fmt.Println("  set-webhook <public_base_url>")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	command := os.Args[1]
	switch command {
	case "show":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin show <conversation_id>")
			os.Exit(1)
		}
		if err := showConversation(ctx, openStore(cfg), os.Args[2]); err != nil {
			log.Fatalf("Error showing conversation: %v", err)
		}
	case "set-status":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin set-status <conversation_id> <status>")
			os.Exit(1)
		}
		svc, err := newService(cfg, openStore(cfg), logger)
		if err != nil {
			log.Fatalf("Error building service: %v", err)
		}
		res, err := svc.ChangeStatus(ctx, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Error changing status: %v", err)
		}
		fmt.Printf("Conversation %s is now %s.\n", res.Conversation.ID, res.Conversation.Status)
	case "set-webhook":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin set-webhook <public_base_url>")
			os.Exit(1)
		}
		if err := setWebhook(ctx, cfg, logger, os.Args[2]); err != nil {
			log.Fatalf("Error registering webhook: %v", err)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) *storage.Service {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	// events published from here reach no websocket, so redis is not needed
	return storage.NewStorageService(db, nil)
}

func showConversation(ctx context.Context, s storage.Storage, id string) error {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation %s not found", id)
	}
	thread := "-"
	if conv.HasThread() {
		thread = *conv.OperatorThreadID
	}
	fmt.Printf("Conversation %s\n", conv.ID)
	fmt.Printf("  contact: %s <%s>\n", conv.ContactName, conv.ContactEmail)
	fmt.Printf("  mode: %s  status: %s  thread: %s\n", conv.Mode, conv.Status, thread)
	fmt.Printf("  created: %s  last message: %s\n", conv.CreatedAt.Format(time.RFC3339), conv.LastMessageAt.Format(time.RFC3339))

	msgs, err := s.ListMessages(ctx, conv.ID, config.MaxPageSize, 0)
	if err != nil {
		return err
	}
	unread, err := s.CountUnread(ctx, conv.ID)
	if err != nil {
		return err
	}
	fmt.Printf("  unread: %d\n\n", unread)
	for _, m := range msgs {
		line := m.Text()
		if att := m.Attachment(); att != "" {
			line = strings.TrimSpace(line + " [" + att + "]")
		}
		fmt.Printf("[%s] %-7s %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.SenderType, line)
	}
	return nil
}

// newService builds an orchestrator that runs side effects inline, so the
// operator notification is sent before the command exits.
func newService(cfg *config.Config, store *storage.Service, logger *zap.Logger) (*support.Service, error) {
	localizer, err := localization.NewDefault()
	if err != nil {
		return nil, err
	}
	responder, err := assistant.NewResponder(offlineGenerator{}, localizer, assistant.Options{
		BusinessName: cfg.AI.BusinessName,
	})
	if err != nil {
		return nil, err
	}
	bot, err := telegram.NewBotAPI(cfg.Telegram)
	if err != nil {
		return nil, err
	}
	channel := telegram.NewTelegramChannel(bot, cfg.Telegram, logger)
	bridge := telegram.NewBridge(channel, store, localizer, cfg.Telegram.SupportChatID, logger)
	return support.NewService(store, responder, bridge, nil, support.InlineDispatcher{Timeout: cfg.Telegram.Timeout}, logger, support.Options{
		RelayTimeout: cfg.Telegram.Timeout,
	}), nil
}

func setWebhook(ctx context.Context, cfg *config.Config, logger *zap.Logger, baseURL string) error {
	bot, err := telegram.NewBotAPI(cfg.Telegram)
	if err != nil {
		return err
	}
	channel := telegram.NewTelegramChannel(bot, cfg.Telegram, logger)
	url := strings.TrimRight(baseURL, "/") + "/operator-webhook"
	if err := channel.SetWebhook(ctx, url, cfg.Telegram.WebhookSecret); err != nil {
		return err
	}
	fmt.Printf("Webhook registered at %s.\n", url)
	return nil
}
