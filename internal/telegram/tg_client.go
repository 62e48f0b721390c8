package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"supportdesk/backend/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrAttachmentTooLarge is returned when an attachment exceeds the allowed size.
var ErrAttachmentTooLarge = errors.New("telegram: attachment too large")

// AttachmentInfo describes a downloadable file on the operator channel.
type AttachmentInfo struct {
	FileID       string
	DownloadPath string
	Size         int64
}

// Channel is the operator channel as seen by the bridge.
type Channel interface {
	CreateThread(ctx context.Context, title string) (string, error)
	PostText(ctx context.Context, threadID, text string) (string, error)
	PostAttachment(ctx context.Context, threadID, url, caption string) (string, error)
	GetAttachmentInfo(ctx context.Context, ref string) (*AttachmentInfo, error)
	DownloadAttachment(ctx context.Context, downloadPath string, maxBytes int64) ([]byte, error)
}

// botAPI is the part of tgbotapi.BotAPI used by TelegramChannel.
type botAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// TelegramChannel implements Channel on top of forum topics in a single supergroup.
// Every conversation thread is a topic, identified by its message_thread_id.
type TelegramChannel struct {
	api          botAPI
	token        string
	chatID       int64
	fileEndpoint string
	timeout      time.Duration
	httpClient   *http.Client
	log          *zap.Logger
}

// NewBotAPI connects to the Bot API with an HTTP client bounded by cfg.Timeout.
func NewBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	bot.Debug = false
	return bot, nil
}

func NewTelegramChannel(api botAPI, cfg config.TelegramConfig, log *zap.Logger) *TelegramChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fileTimeout := cfg.FileTimeout
	if fileTimeout <= 0 {
		fileTimeout = 20 * time.Second
	}
	return &TelegramChannel{
		api:          api,
		token:        cfg.BotToken,
		chatID:       cfg.SupportChatID,
		fileEndpoint: tgbotapi.FileEndpoint,
		timeout:      timeout,
		httpClient:   &http.Client{Timeout: fileTimeout},
		log:          log,
	}
}

type forumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

type remoteFile struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

func (c *TelegramChannel) CreateThread(ctx context.Context, title string) (string, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", c.chatID)
	params.AddNonEmpty("name", title)

	var topic forumTopic
	if err := c.request(ctx, "createForumTopic", params, &topic); err != nil {
		return "", err
	}
	if topic.MessageThreadID == 0 {
		return "", errors.New("telegram: createForumTopic returned no thread id")
	}
	return strconv.FormatInt(topic.MessageThreadID, 10), nil
}

func (c *TelegramChannel) PostText(ctx context.Context, threadID, text string) (string, error) {
	params, err := c.threadParams(threadID)
	if err != nil {
		return "", err
	}
	params.AddNonEmpty("text", text)
	params.AddBool("disable_web_page_preview", true)

	var sent sentMessage
	if err := c.request(ctx, "sendMessage", params, &sent); err != nil {
		return "", err
	}
	return strconv.FormatInt(sent.MessageID, 10), nil
}

// PostAttachment sends url as a photo when it looks like an image and as a
// document otherwise. Telegram fetches the file itself.
func (c *TelegramChannel) PostAttachment(ctx context.Context, threadID, url, caption string) (string, error) {
	params, err := c.threadParams(threadID)
	if err != nil {
		return "", err
	}
	params.AddNonEmpty("caption", caption)

	endpoint, field := "sendDocument", "document"
	if isImageURL(url) {
		endpoint, field = "sendPhoto", "photo"
	}
	params.AddNonEmpty(field, url)

	var sent sentMessage
	if err := c.request(ctx, endpoint, params, &sent); err != nil {
		return "", err
	}
	return strconv.FormatInt(sent.MessageID, 10), nil
}

func (c *TelegramChannel) GetAttachmentInfo(ctx context.Context, ref string) (*AttachmentInfo, error) {
	params := tgbotapi.Params{}
	params.AddNonEmpty("file_id", ref)

	var file remoteFile
	if err := c.request(ctx, "getFile", params, &file); err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram: file %s has no download path", ref)
	}
	return &AttachmentInfo{FileID: file.FileID, DownloadPath: file.FilePath, Size: file.FileSize}, nil
}

// DownloadAttachment reads at most maxBytes; larger files fail with ErrAttachmentTooLarge.
func (c *TelegramChannel) DownloadAttachment(ctx context.Context, downloadPath string, maxBytes int64) ([]byte, error) {
	url := fmt.Sprintf(c.fileEndpoint, c.token, strings.TrimLeft(downloadPath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL carries the bot token, keep it out of the error
		return nil, fmt.Errorf("telegram: download %s failed", downloadPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download %s: status %d", downloadPath, resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, ErrAttachmentTooLarge
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("telegram: read %s: %w", downloadPath, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrAttachmentTooLarge
	}
	return data, nil
}

// SetWebhook points the bot at url. Telegram echoes secret back in the
// X-Telegram-Bot-Api-Secret-Token header of every update.
func (c *TelegramChannel) SetWebhook(ctx context.Context, url, secret string) error {
	allowed, err := json.Marshal([]string{"message"})
	if err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonEmpty("url", url)
	params.AddNonEmpty("secret_token", secret)
	params.AddNonEmpty("allowed_updates", string(allowed))
	params.AddBool("drop_pending_updates", true)
	return c.request(ctx, "setWebhook", params, nil)
}

func (c *TelegramChannel) threadParams(threadID string) (tgbotapi.Params, error) {
	id, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("telegram: invalid thread id %q", threadID)
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", c.chatID)
	params.AddNonZero64("message_thread_id", id)
	return params, nil
}

type apiResult struct {
	resp *tgbotapi.APIResponse
	err  error
}

// request performs a Bot API call bounded by the channel timeout and decodes the
// result into out when out is non-nil.
func (c *TelegramChannel) request(ctx context.Context, endpoint string, params tgbotapi.Params, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan apiResult, 1)
	go func() {
		resp, err := c.api.MakeRequest(endpoint, params)
		done <- apiResult{resp: resp, err: err}
	}()

	var res apiResult
	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram: %s: %w", endpoint, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return fmt.Errorf("telegram: %s: %w", endpoint, res.err)
	}
	if res.resp == nil || !res.resp.Ok {
		desc := "empty response"
		if res.resp != nil {
			desc = fmt.Sprintf("%s (code %d)", res.resp.Description, res.resp.ErrorCode)
		}
		return fmt.Errorf("telegram: %s: %s", endpoint, desc)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.resp.Result, out); err != nil {
		c.log.Warn("Unexpected Bot API result", zap.String("operation", endpoint), zap.Error(err))
		return fmt.Errorf("telegram: decode %s result: %w", endpoint, err)
	}
	return nil
}

func isImageURL(raw string) bool {
	p := raw
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}
