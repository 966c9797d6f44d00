package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"clinicbook/internal/clinic"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `<b>Clinic booking</b>

/book - book an appointment
/my_bookings - your appointments
/cancel_booking &lt;id&gt; - cancel an appointment
/stats - your appointment overview
/export - download your appointments as Excel
/services - browse clinic services
/doctors [specialty] - browse doctors
/profile - your profile
/register - create a clinic account
/login - sign in with your clinic account
/logout - sign out
/cancel - abandon the current booking`

const (
	tempLoginEmail    = "login_email"
	tempRegisterEmail = "register_email"
	tempRegisterName  = "register_name"
	tempVerifyEmail   = "verify_email"
)

// keepsPrompt lists commands that leave a pending text prompt in place.
var keepsPrompt = map[string]bool{
	"skip":        true,
	"resend_code": true,
}

func (b *Bot) handleMessage(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, session, msg)
		return
	}

	switch session.InputStep {
	case models.InputLoginEmail:
		b.handleLoginEmail(ctx, session, msg)
	case models.InputLoginPassword:
		b.handleLoginPassword(ctx, session, msg)
	case models.InputNotes:
		b.handleNotesInput(ctx, session, msg)
	case models.InputRegisterEmail:
		b.handleRegisterEmail(ctx, session, msg)
	case models.InputRegisterName:
		b.handleRegisterName(ctx, session, msg)
	case models.InputRegisterPassword:
		b.handleRegisterPassword(ctx, session, msg)
	case models.InputVerifyCode:
		b.handleVerifyCode(ctx, session, msg)
	case models.InputProfileName, models.InputProfilePhone:
		b.handleProfileInput(ctx, session, msg)
	case models.InputCurrentPassword:
		b.handleCurrentPassword(ctx, session, msg)
	case models.InputNewPassword:
		b.handleNewPassword(ctx, session, msg)
	default:
		b.sendHTML(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	command := msg.Command()
	if b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(command).Inc()
	}
	zerolog.Ctx(ctx).Debug().Int64("user_id", session.UserID).Str("command", command).Msg("command")

	// any command abandons a pending text prompt
	if session.InputStep != models.InputNone && !keepsPrompt[command] {
		b.abandonPrompt(ctx, session)
	}

	chatID := msg.Chat.ID
	switch command {
	case "start":
		name := ""
		if session.Authenticated() {
			name = ", " + html.EscapeString(session.User.FullName)
		}
		b.sendHTML(chatID, fmt.Sprintf("👋 Welcome%s!\n\n%s", name, helpText))
	case "help":
		b.sendHTML(chatID, helpText)
	case "login":
		b.handleLogin(ctx, session, chatID)
	case "logout":
		b.handleLogout(ctx, session, chatID)
	case "book":
		b.handleBook(ctx, session, chatID)
	case "cancel":
		b.handleCancelFlow(ctx, session, chatID, 0)
	case "skip":
		b.handleSkipNotes(ctx, session, chatID)
	case "my_bookings":
		b.handleMyBookings(ctx, session, chatID, 0, 0)
	case "cancel_booking":
		b.handleCancelBooking(ctx, session, chatID, strings.TrimSpace(msg.CommandArguments()))
	case "export":
		b.handleExport(ctx, session, chatID)
	case "services":
		b.handleServices(ctx, session, chatID)
	case "doctors":
		b.handleDoctors(ctx, session, chatID, strings.TrimSpace(msg.CommandArguments()))
	case "stats":
		b.handleStats(ctx, session, chatID)
	case "profile":
		b.handleProfile(ctx, session, chatID)
	case "edit_name":
		b.handleEditProfile(ctx, session, chatID, models.InputProfileName)
	case "edit_phone":
		b.handleEditProfile(ctx, session, chatID, models.InputProfilePhone)
	case "change_password":
		b.handleChangePassword(ctx, session, chatID)
	case "register":
		b.handleRegister(ctx, session, chatID)
	case "resend_code":
		b.handleResendCode(ctx, session, chatID)
	default:
		b.sendHTML(chatID, "Unknown command.\n\n"+helpText)
	}
}

func (b *Bot) requireLogin(session *models.Session, chatID int64) bool {
	if session.Authenticated() {
		return true
	}
	b.sendHTML(chatID, "🔒 Please /login with your clinic account first.")
	return false
}

func (b *Bot) handleLogin(ctx context.Context, session *models.Session, chatID int64) {
	if session.Authenticated() {
		b.sendHTML(chatID, fmt.Sprintf("You are signed in as <b>%s</b>. Use /logout to switch accounts.", html.EscapeString(session.User.Email)))
		return
	}
	if !b.sessions.Allow(ctx, session.UserID, loginAttemptLimit, loginAttemptWindow) {
		b.sendHTML(chatID, "⚠️ Too many login attempts. Please try again later.")
		return
	}
	session.InputStep = models.InputLoginEmail
	b.saveSession(ctx, session)
	b.sendHTML(chatID, "📧 Please enter your email:")
}

func (b *Bot) handleLoginEmail(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	email := strings.TrimSpace(msg.Text)
	if email == "" || !strings.Contains(email, "@") {
		b.sendHTML(msg.Chat.ID, "⚠️ That does not look like an email. Please try again:")
		return
	}
	session.SetTemp(tempLoginEmail, email)
	session.InputStep = models.InputLoginPassword
	b.saveSession(ctx, session)
	b.sendHTML(msg.Chat.ID, "🔑 Now enter your password:")
}

func (b *Bot) handleLoginPassword(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	// the password should not stay in the chat history
	b.forgetMessage(ctx, msg)

	email := session.GetString(tempLoginEmail)
	session.InputStep = models.InputNone
	delete(session.TempData, tempLoginEmail)

	err := b.auth.Login(ctx, session, email, msg.Text)
	b.saveSession(ctx, session)
	if err != nil {
		switch {
		case errors.Is(err, clinic.ErrUnauthorized):
			b.sendHTML(chatID, "⚠️ Wrong email or password. Use /login to try again.")
		case errors.Is(err, service.ErrNotPatient), errors.Is(err, service.ErrInvalidCredentials):
			b.sendHTML(chatID, b.getErrorMessage(err))
		default:
			b.reportError(ctx, session, chatID, err)
		}
		return
	}

	b.refreshFlowUser(session, chatID)
	b.sendHTML(chatID, fmt.Sprintf("✅ Welcome, <b>%s</b>! Use /book to make an appointment.", html.EscapeString(session.User.FullName)))
}

func (b *Bot) handleLogout(ctx context.Context, session *models.Session, chatID int64) {
	if !session.Authenticated() {
		b.sendHTML(chatID, "You are not signed in.")
		return
	}
	b.auth.Logout(ctx, session)
	b.saveSession(ctx, session)
	b.dropFlow(session.UserID)
	b.takeSecret(session.UserID)
	b.sendHTML(chatID, "👋 You are signed out.")
}

// handleBook resumes a saved draft, or starts over when there is none.
func (b *Bot) handleBook(ctx context.Context, session *models.Session, chatID int64) {
	if !b.requireLogin(session, chatID) {
		return
	}
	uf := b.flowFor(session, chatID)
	if uf.Store.Step() == models.StepService && uf.Store.Draft().Service == nil {
		uf.Start()
		metrics.IncFunnel(metrics.StageStarted)
	}
	b.persistDraft(ctx, session, uf)
	b.renderStep(ctx, session, uf, chatID, 0)
}

func (b *Bot) handleCancelFlow(ctx context.Context, session *models.Session, chatID int64, messageID int) {
	uf := b.flowFor(session, chatID)
	uf.Cancel()
	metrics.IncFunnel(metrics.StageCancelled)
	session.InputStep = models.InputNone
	b.persistDraft(ctx, session, uf)

	text := "Booking cancelled. Use /book to start again."
	if messageID != 0 {
		if _, err := b.tgService.EditMessage(chatID, messageID, text, nil); err == nil {
			return
		}
	}
	b.sendHTML(chatID, text)
}

func (b *Bot) handleNotesInput(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	uf := b.flowFor(session, msg.Chat.ID)
	if err := uf.Store.SetNotes(strings.TrimSpace(msg.Text)); err != nil {
		b.reportError(ctx, session, msg.Chat.ID, err)
		return
	}
	session.InputStep = models.InputNone
	b.persistDraft(ctx, session, uf)
	b.renderStep(ctx, session, uf, msg.Chat.ID, 0)
}

func (b *Bot) handleSkipNotes(ctx context.Context, session *models.Session, chatID int64) {
	if session.InputStep != models.InputNotes {
		b.sendHTML(chatID, helpText)
		return
	}
	uf := b.flowFor(session, chatID)
	session.InputStep = models.InputNone
	b.persistDraft(ctx, session, uf)
	b.renderStep(ctx, session, uf, chatID, 0)
}
