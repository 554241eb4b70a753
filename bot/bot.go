package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tripwatch-bot/internal/services"
)

var (
	bot         *tgbotapi.BotAPI
	adminChatID int64

	registration *services.RegistrationService
	checkin      *services.CheckinService
	admin        *services.AdminService
)

// Init initializes the Telegram Bot
func Init(token string, adminID int64) error {
	var err error
	bot, err = tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}

	bot.Debug = false
	adminChatID = adminID
	log.Printf("Authorized on account %s", bot.Self.UserName)
	return nil
}

// SetServices wires the conversation services the update loop dispatches to.
func SetServices(reg *services.RegistrationService, chk *services.CheckinService, adm *services.AdminService) {
	registration = reg
	checkin = chk
	admin = adm
}

// StartPolling starts the update loop
func StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	go func() {
		for update := range updates {
			if update.CallbackQuery != nil {
				handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil {
				continue
			}

			msg := update.Message
			switch {
			case msg.IsCommand():
				handleCommand(ctx, msg)
			case msg.Location != nil:
				handleLocation(ctx, msg)
			default:
				handleText(ctx, msg)
			}
		}
	}()
}

func handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		send(chatID, "🧭 *Trip check-in bot*\n\n"+
			"*Commands:*\n"+
			"/register - register and add your trips\n"+
			"/newtrip - add a new trip\n"+
			"/edit - edit your current trip\n"+
			"/getid - show this chat id\n\n"+
			"Share your location when a check-in is due.")

	case "getid":
		send(chatID, fmt.Sprintf("Chat ID: `%d`", chatID))

	case "register":
		sendReply(chatID, registration.StartRegistration(chatID, msg.From.UserName))

	case "newtrip":
		reply, err := registration.StartNewTrip(ctx, chatID)
		if err != nil {
			log.Printf("newtrip failed for chat %d: %v", chatID, err)
			send(chatID, "Something went wrong, please try again.")
			return
		}
		sendReply(chatID, reply)

	case "edit":
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Country", "edit:country"),
				tgbotapi.NewInlineKeyboardButtonData("Dates", "edit:dates"),
				tgbotapi.NewInlineKeyboardButtonData("Frequency", "edit:frequency"),
			))
		out := tgbotapi.NewMessage(chatID, "What do you want to change?")
		out.ReplyMarkup = markup
		if _, err := bot.Send(out); err != nil {
			log.Printf("Bot send error: %v", err)
		}

	case "list", "status", "map", "export":
		handleAdminCommand(ctx, msg)

	default:
		send(chatID, "Unknown command, use /start")
	}
}

// handleAdminCommand dispatches the read-only reporting verbs, admin only.
func handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if chatID != adminChatID {
		send(chatID, "This command is for the administrator.")
		return
	}

	var (
		text string
		err  error
	)
	switch msg.Command() {
	case "list":
		text, err = admin.List(ctx)
	case "status":
		handle := strings.TrimSpace(msg.CommandArguments())
		if handle == "" {
			send(chatID, "Usage: `/status <handle>`")
			return
		}
		text, err = admin.Status(ctx, handle)
	case "map":
		text, err = admin.Map(ctx)
	case "export":
		data, exportErr := admin.ExportCSV(ctx, 30)
		if exportErr != nil {
			err = exportErr
			break
		}
		name := fmt.Sprintf("checkins-%s.csv", time.Now().Format("2006-01-02"))
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
		if _, sendErr := bot.Send(doc); sendErr != nil {
			log.Printf("Bot send error: %v", sendErr)
		}
		return
	}

	if err != nil {
		log.Printf("Admin command %s failed: %v", msg.Command(), err)
		send(chatID, "Something went wrong, please try again.")
		return
	}
	send(chatID, text)
}

func handleLocation(ctx context.Context, msg *tgbotapi.Message) {
	reply, err := checkin.HandleLocation(ctx, msg.Chat.ID, msg.Location.Latitude, msg.Location.Longitude)
	if err != nil {
		log.Printf("Location handling failed for chat %d: %v", msg.Chat.ID, err)
		send(msg.Chat.ID, "Something went wrong, please try again.")
		return
	}
	sendReply(msg.Chat.ID, reply)
}

func handleText(ctx context.Context, msg *tgbotapi.Message) {
	dispatchInput(ctx, msg.Chat.ID, msg.Text)
}

func handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	ack := tgbotapi.NewCallback(query.ID, "")
	if _, err := bot.Request(ack); err != nil {
		log.Printf("Callback ack error: %v", err)
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	if field, ok := strings.CutPrefix(query.Data, "edit:"); ok {
		reply, err := registration.StartEdit(ctx, chatID, field)
		if err != nil {
			log.Printf("Edit start failed for chat %d: %v", chatID, err)
			send(chatID, "Something went wrong, please try again.")
			return
		}
		sendReply(chatID, reply)
		return
	}

	dispatchInput(ctx, chatID, query.Data)
}

// dispatchInput feeds one input into whichever flow is waiting on it:
// a pending check-in status first, then the registration/edit machine.
func dispatchInput(ctx context.Context, chatID int64, input string) {
	reply, err := checkin.HandleStatus(ctx, chatID, input)
	if err == nil && reply == nil {
		reply, err = registration.HandleInput(ctx, chatID, input)
	}
	if err != nil {
		log.Printf("Input handling failed for chat %d: %v", chatID, err)
		send(chatID, "Something went wrong, please try again.")
		return
	}
	sendReply(chatID, reply)
}

// sendReply renders a state machine reply, attaching choice buttons.
func sendReply(chatID int64, reply *services.Reply) {
	if reply == nil || reply.Text == "" {
		return
	}
	out := tgbotapi.NewMessage(chatID, reply.Text)
	out.ParseMode = "Markdown"
	if len(reply.Choices) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reply.Choices))
		for _, c := range reply.Choices {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(c, c)))
		}
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := bot.Send(out); err != nil {
		log.Printf("Bot send error: %v", err)
	}
}

func send(chatID int64, text string) {
	sendReply(chatID, &services.Reply{Text: text})
}

// SendNotification sends message to admin
func SendNotification(message string) {
	if bot == nil || adminChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(adminChatID, message)
	msg.ParseMode = "Markdown"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Failed to send: %v", err)
	}
}

// SendPersonalNotification sends to specific user
func SendPersonalNotification(chatID int64, message string) {
	if bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = "Markdown"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Failed to send to %d: %v", chatID, err)
	}
}
