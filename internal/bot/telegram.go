package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"critterlens/internal"
	"critterlens/internal/ai"
	"critterlens/internal/catalog"
	"critterlens/internal/fingerprint"
	"critterlens/internal/logging"
	"critterlens/internal/namex"
	"critterlens/internal/s3"
)

var ErrNoImage = errors.New("no image found")

type TelegramBot struct {
	tg    *tgbotapi.BotAPI
	cfg   internal.Config
	store *catalog.Store
	strat fingerprint.Strategy
	facts *ai.FactGenerator
	refs  s3.Client // reference image uploads, nil when S3 is off
	log   *logging.Logger
}

func NewTelegramBot(cfg internal.Config, store *catalog.Store, strat fingerprint.Strategy, facts *ai.FactGenerator, refs s3.Client, log *logging.Logger) (*TelegramBot, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("telegram token is empty")
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	return &TelegramBot{
		tg:    api,
		cfg:   cfg,
		store: store,
		strat: strat,
		facts: facts,
		refs:  refs,
		log:   log,
	}, nil
}

// Run pulls updates until ctx is cancelled. Commands are handled inline, one
// at a time; the image download is the only blocking I/O per command.
func (b *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)
	b.log.Infof("telegram bot started as @%s (strategy=%s, catalog=%d entries)",
		b.tg.Self.UserName, b.strat.Name(), b.store.Len())

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return nil
		case upd := <-updates:
			if upd.Message != nil && upd.Message.IsCommand() {
				b.handleCommand(ctx, upd.Message)
			}
		}
	}
}

func (b *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.replyText(chatID, "Hi! Reply to an image with /identify and I'll tell you which species it shows. /help for all commands.")
	case "help":
		b.cmdHelp(chatID)
	case "identify":
		b.cmdIdentify(ctx, chatID, msg)
	case "store":
		b.cmdStore(ctx, chatID, msg)
	case "assign":
		b.cmdAssign(ctx, chatID, msg)
	case "forget":
		b.cmdForget(ctx, chatID, msg.CommandArguments())
	case "list":
		b.cmdList(chatID)
	case "status":
		b.cmdStatus(chatID)
	default:
		b.replyText(chatID, "Unknown command. Use /help.")
	}
}

func (b *TelegramBot) cmdHelp(chatID int64) {
	b.replyText(chatID, strings.Join([]string{
		"/identify — reply to an image (or pass an image URL) to identify the species",
		"/store — reply to an image to queue its fingerprint for naming",
		"/assign [name] — name the oldest queued image; without an argument the name is read from the replied-to message text",
		"/forget <name> — remove a species from the catalog",
		"/list — list known species",
		"/status — strategy, catalog size and pending queue",
	}, "\n"))
}

func (b *TelegramBot) cmdIdentify(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	_, img, ok := b.fetchCommandImage(ctx, chatID, msg)
	if !ok {
		return
	}

	fp, err := b.strat.Extract(img)
	if err != nil {
		b.log.Errorf("identify: extract: %v", err)
		b.replyText(chatID, "⚠️ Could not fingerprint that image.")
		return
	}

	best, score, found, err := b.store.Nearest(fp)
	if err != nil {
		b.log.Errorf("identify: nearest: %v", err)
		b.replyText(chatID, "⚠️ Lookup failed, see logs.")
		return
	}
	if !found {
		b.replyText(chatID, "📭 The catalog is empty — /store and /assign some reference images first.")
		return
	}

	if !b.strat.Accepts(score) {
		if !b.cfg.Silent {
			b.log.Infof("identify: best %s rejected (%s)", best.Label, b.strat.Describe(score))
		}
		b.replyText(chatID, "❓ I couldn't confidently identify this one.")
		return
	}

	name := namex.DisplayName(best.Label)
	reply := fmt.Sprintf("🧠 %s — this is %s!", b.strat.Describe(score), name)
	if fact := b.facts.SpeciesFact(ctx, name); fact != "" {
		reply += "\n💡 " + fact
	}
	b.replyText(chatID, reply)
}

func (b *TelegramBot) cmdStore(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	data, img, ok := b.fetchCommandImage(ctx, chatID, msg)
	if !ok {
		return
	}

	fp, err := b.strat.Extract(img)
	if err != nil {
		b.log.Errorf("store: extract: %v", err)
		b.replyText(chatID, "⚠️ Could not fingerprint that image.")
		return
	}

	n := b.store.Enqueue(fp, data)
	b.replyText(chatID, fmt.Sprintf("🕒 Image stored temporarily (%d pending). Now /assign its name.", n))
}

func (b *TelegramBot) cmdAssign(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		name = nameFromMessage(msg.ReplyToMessage)
	}
	if name == "" {
		b.replyText(chatID, "❌ Could not find a species name! Pass one (/assign Bulbasaur) or reply to a sighting message.")
		return
	}

	label := namex.StorageName(name)
	if label == "" {
		b.replyText(chatID, "❌ That name is empty after cleanup.")
		return
	}

	entry, raw, err := b.store.Assign(ctx, label)
	if errors.Is(err, catalog.ErrNoPending) {
		b.replyText(chatID, "⚠️ No stored images! /store one first.")
		return
	}
	if err != nil {
		b.log.Errorf("assign: %v", err)
		b.replyText(chatID, fmt.Sprintf("⚠️ Could not save the entry: %v", err))
		return
	}

	b.uploadReference(ctx, label, raw)
	b.replyText(chatID, fmt.Sprintf("✅ Saved %s with its fingerprint (%d species known).", namex.DisplayName(entry.Label), b.store.Len()))
}

func (b *TelegramBot) cmdForget(ctx context.Context, chatID int64, args string) {
	label := namex.StorageName(args)
	if label == "" {
		b.replyText(chatID, "Usage: /forget <name>")
		return
	}

	err := b.store.Remove(ctx, label)
	if errors.Is(err, catalog.ErrNotFound) {
		b.replyText(chatID, fmt.Sprintf("❓ %s is not in the catalog.", namex.DisplayName(label)))
		return
	}
	if err != nil {
		b.log.Errorf("forget: %v", err)
		b.replyText(chatID, fmt.Sprintf("⚠️ Could not remove the entry: %v", err))
		return
	}
	b.replyText(chatID, fmt.Sprintf("🗑️ Forgot %s.", namex.DisplayName(label)))
}

func (b *TelegramBot) cmdList(chatID int64) {
	labels := b.store.Labels()
	if len(labels) == 0 {
		b.replyText(chatID, "📭 The catalog is empty.")
		return
	}
	lines := make([]string, 0, len(labels))
	for _, l := range labels {
		lines = append(lines, "• "+namex.DisplayName(l))
	}
	b.replyText(chatID, fmt.Sprintf("📖 Known species (%d):\n%s", len(labels), strings.Join(lines, "\n")))
}

func (b *TelegramBot) cmdStatus(chatID int64) {
	b.replyText(chatID, fmt.Sprintf("strategy: %s\ncatalog: %d species\npending: %d images",
		b.strat.Name(), b.store.Len(), b.store.PendingLen()))
}

// fetchCommandImage resolves the image a command refers to (URL argument or
// replied-to message), downloads and decodes it, and reports the failure to
// the user itself. ok is false when the caller should stop.
func (b *TelegramBot) fetchCommandImage(ctx context.Context, chatID int64, msg *tgbotapi.Message) (data []byte, img image.Image, ok bool) {
	url, err := b.resolveImageURL(msg)
	if errors.Is(err, ErrNoImage) {
		b.replyText(chatID, "❌ No image found! Reply to a photo or pass an image URL.")
		return nil, nil, false
	}
	if err != nil {
		b.log.Errorf("resolve image: %v", err)
		b.replyText(chatID, "⚠️ Could not resolve the image file.")
		return nil, nil, false
	}

	data, err = fetchBytes(ctx, url)
	if err != nil {
		b.log.Warnf("fetch image: %v", err)
		b.replyText(chatID, "⚠️ Could not download the image!")
		return nil, nil, false
	}

	img, err = fingerprint.Decode(data)
	if err != nil {
		b.log.Warnf("decode image: %v", err)
		b.replyText(chatID, "❌ Those bytes are not a decodable image.")
		return nil, nil, false
	}
	return data, img, true
}

// resolveImageURL finds the image behind a command: an http(s) URL argument,
// or a photo / image document on the replied-to message (falling back to the
// command message itself for captioned uploads).
func (b *TelegramBot) resolveImageURL(msg *tgbotapi.Message) (string, error) {
	if args := strings.TrimSpace(msg.CommandArguments()); strings.HasPrefix(args, "http://") || strings.HasPrefix(args, "https://") {
		return args, nil
	}
	for _, m := range []*tgbotapi.Message{msg.ReplyToMessage, msg} {
		if m == nil {
			continue
		}
		if len(m.Photo) > 0 {
			// Sizes are ordered small to large; take the largest.
			return b.tg.GetFileDirectURL(m.Photo[len(m.Photo)-1].FileID)
		}
		if m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/") {
			return b.tg.GetFileDirectURL(m.Document.FileID)
		}
	}
	return "", ErrNoImage
}

// nameFromMessage extracts a species name from the text or caption of a
// replied-to sighting message.
func nameFromMessage(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	for _, text := range []string{msg.Text, msg.Caption} {
		if name, ok := namex.Extract(text); ok {
			return name
		}
	}
	return ""
}

func fetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// uploadReference keeps the raw bytes an entry was fingerprinted from next
// to the catalog mirror. Best effort only.
func (b *TelegramBot) uploadReference(ctx context.Context, label string, raw []byte) {
	if b.refs == nil || len(raw) == 0 {
		return
	}
	key := b.cfg.RefsPrefix + label + ".img"
	if err := b.refs.PutBytes(ctx, key, raw, http.DetectContentType(raw)); err != nil {
		b.log.Warnf("assign: reference upload failed for %s: %v", key, err)
	}
}

func (b *TelegramBot) replyText(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Errorf("send message: %v", err)
	}
}
