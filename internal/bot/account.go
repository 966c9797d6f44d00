package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"clinicbook/internal/domain"
	"clinicbook/internal/models"
	"clinicbook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// abandonPrompt drops a half-answered text prompt. A pending email verification
// survives so /resend_code can pick it up again.
func (b *Bot) abandonPrompt(ctx context.Context, session *models.Session) {
	session.InputStep = models.InputNone
	delete(session.TempData, tempLoginEmail)
	delete(session.TempData, tempRegisterEmail)
	delete(session.TempData, tempRegisterName)
	b.takeSecret(session.UserID)
	b.saveSession(ctx, session)
}

func (b *Bot) putSecret(userID int64, secret string) {
	b.mu.Lock()
	b.secrets[userID] = secret
	b.mu.Unlock()
}

func (b *Bot) takeSecret(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	secret := b.secrets[userID]
	delete(b.secrets, userID)
	return secret
}

// forgetMessage deletes a message that carried a password.
func (b *Bot) forgetMessage(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := b.tgService.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("delete password message failed")
	}
}

// refreshFlowUser hands the session's identity to a live booking wizard.
func (b *Bot) refreshFlowUser(session *models.Session, chatID int64) {
	b.mu.Lock()
	uf := b.flows[session.UserID]
	b.mu.Unlock()
	if uf != nil {
		uf.touch(session, chatID, b.now())
	}
}

func (b *Bot) handleServices(ctx context.Context, session *models.Session, chatID int64) {
	services, err := b.clinic.ListServices(ctx, domain.ServiceFilter{IsActive: true})
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	if len(services) == 0 {
		b.sendHTML(chatID, "No services are available right now.")
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>🩺 Clinic services</b>\n")
	for _, svc := range services {
		sb.WriteString(fmt.Sprintf("\n• <b>%s</b>", html.EscapeString(svc.Name)))
		if svc.DurationMinutes > 0 {
			sb.WriteString(fmt.Sprintf(" · %d min", svc.DurationMinutes))
		}
		if svc.Price > 0 {
			sb.WriteString(" · " + formatPrice(svc.Price))
		}
		if svc.Description != "" {
			sb.WriteString("\n   " + html.EscapeString(svc.Description))
		}
	}
	sb.WriteString("\n\nUse /book to make an appointment.")
	b.sendHTML(chatID, sb.String())
}

func (b *Bot) handleDoctors(ctx context.Context, session *models.Session, chatID int64, specialty string) {
	doctors, err := b.clinic.ListDoctors(ctx, domain.DoctorFilter{IsActive: true, Specialty: specialty})
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	if len(doctors) == 0 {
		if specialty != "" {
			b.sendHTML(chatID, fmt.Sprintf("No doctors found for <b>%s</b>.", html.EscapeString(specialty)))
			return
		}
		b.sendHTML(chatID, "No doctors are available right now.")
		return
	}

	var sb strings.Builder
	if specialty != "" {
		sb.WriteString(fmt.Sprintf("<b>👨‍⚕️ Doctors · %s</b>\n", html.EscapeString(specialty)))
	} else {
		sb.WriteString("<b>👨‍⚕️ Our doctors</b>\n")
	}
	for _, d := range doctors {
		sb.WriteString(fmt.Sprintf("\n• <b>%s</b>", html.EscapeString(d.FullName)))
		if len(d.Specialties) > 0 {
			sb.WriteString(" · " + html.EscapeString(strings.Join(d.Specialties, ", ")))
		}
		if d.YearsOfExperience > 0 {
			sb.WriteString(fmt.Sprintf("\n   %d years of experience", d.YearsOfExperience))
		}
		if d.Rating > 0 {
			sb.WriteString(fmt.Sprintf("\n   ⭐ %.1f (%d reviews)", d.Rating, d.ReviewCount))
		}
	}
	b.sendHTML(chatID, sb.String())
}

func (b *Bot) handleStats(ctx context.Context, session *models.Session, chatID int64) {
	if !b.requireLogin(session, chatID) {
		return
	}
	dash, err := b.accounts.Dashboard(ctx)
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>📊 Your appointments</b>\n")
	sb.WriteString(fmt.Sprintf("\nUpcoming: <b>%d</b>", dash.Stats.UpcomingBookings))
	sb.WriteString(fmt.Sprintf("\nWaiting: <b>%d</b>", dash.Stats.WaitingBookings))
	sb.WriteString(fmt.Sprintf("\nCompleted: <b>%d</b>", dash.Stats.CompletedBookings))
	sb.WriteString(fmt.Sprintf("\nTotal: <b>%d</b>", dash.Stats.TotalBookings))
	if next := dash.NextBooking; next != nil {
		sb.WriteString("\n\n<b>Next appointment</b>\n")
		sb.WriteString(bookingLine(*next))
		if next.EndTime != "" {
			sb.WriteString(fmt.Sprintf("\n   🕐 %s - %s", next.StartTime, next.EndTime))
		}
	} else {
		sb.WriteString("\n\nNo upcoming appointment. Use /book to make one.")
	}
	b.sendHTML(chatID, sb.String())
}

func (b *Bot) handleProfile(ctx context.Context, session *models.Session, chatID int64) {
	if !b.requireLogin(session, chatID) {
		return
	}
	user, err := b.accounts.Profile(ctx, session)
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	b.saveSession(ctx, session)
	b.refreshFlowUser(session, chatID)
	b.sendHTML(chatID, profileText(user))
}

func profileText(u *models.User) string {
	var sb strings.Builder
	sb.WriteString("<b>👤 Your profile</b>\n")
	sb.WriteString(fmt.Sprintf("\nName: <b>%s</b>", html.EscapeString(u.FullName)))
	sb.WriteString(fmt.Sprintf("\nEmail: %s", html.EscapeString(u.Email)))
	phone := u.Phone
	if phone == "" {
		phone = "not set"
	}
	sb.WriteString(fmt.Sprintf("\nPhone: %s", html.EscapeString(phone)))
	if u.DateOfBirth != "" {
		sb.WriteString(fmt.Sprintf("\nDate of birth: %s", html.EscapeString(u.DateOfBirth)))
	}
	if u.Address != "" {
		sb.WriteString(fmt.Sprintf("\nAddress: %s", html.EscapeString(u.Address)))
	}
	sb.WriteString("\n\n/edit_name · /edit_phone · /change_password")
	return sb.String()
}

func (b *Bot) handleEditProfile(ctx context.Context, session *models.Session, chatID int64, step string) {
	if !b.requireLogin(session, chatID) {
		return
	}
	session.InputStep = step
	b.saveSession(ctx, session)
	if step == models.InputProfileName {
		b.sendHTML(chatID, "✏️ Enter your full name:")
		return
	}
	b.sendHTML(chatID, "📱 Enter your phone number:")
}

func (b *Bot) handleProfileInput(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	var req models.UpdateProfileRequest
	if session.InputStep == models.InputProfileName {
		req.FullName = msg.Text
	} else {
		req.Phone = msg.Text
	}

	user, err := b.accounts.UpdateProfile(ctx, session, req)
	if errors.Is(err, service.ErrInvalidPhone) || errors.Is(err, service.ErrNothingToUpdate) {
		b.sendHTML(chatID, b.getErrorMessage(err)+"\nPlease try again, or /cancel.")
		return
	}
	session.InputStep = models.InputNone
	b.saveSession(ctx, session)
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	b.refreshFlowUser(session, chatID)
	b.sendHTML(chatID, "✅ Profile updated.\n\n"+profileText(user))
}

func (b *Bot) handleChangePassword(ctx context.Context, session *models.Session, chatID int64) {
	if !b.requireLogin(session, chatID) {
		return
	}
	session.InputStep = models.InputCurrentPassword
	b.saveSession(ctx, session)
	b.sendHTML(chatID, "🔑 Enter your current password:")
}

func (b *Bot) handleCurrentPassword(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	b.forgetMessage(ctx, msg)
	b.putSecret(session.UserID, msg.Text)
	session.InputStep = models.InputNewPassword
	b.saveSession(ctx, session)
	b.sendHTML(msg.Chat.ID, fmt.Sprintf("🔑 Now enter the new password (at least %d characters):", models.MinPasswordLength))
}

func (b *Bot) handleNewPassword(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	b.forgetMessage(ctx, msg)

	current := b.takeSecret(session.UserID)
	if current == "" {
		// the bot restarted between the two prompts
		session.InputStep = models.InputNone
		b.saveSession(ctx, session)
		b.sendHTML(chatID, "⚠️ Please start again with /change_password.")
		return
	}

	err := b.accounts.ChangePassword(ctx, session, current, msg.Text)
	if errors.Is(err, service.ErrPasswordTooShort) || errors.Is(err, service.ErrSamePassword) {
		b.putSecret(session.UserID, current)
		b.sendHTML(chatID, b.getErrorMessage(err)+"\nEnter another new password, or /cancel.")
		return
	}
	session.InputStep = models.InputNone
	b.saveSession(ctx, session)
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	b.sendHTML(chatID, "✅ Password changed.")
}

func (b *Bot) handleRegister(ctx context.Context, session *models.Session, chatID int64) {
	if session.Authenticated() {
		b.sendHTML(chatID, "You already have an account. Use /logout first to register another one.")
		return
	}
	if !b.sessions.Allow(ctx, session.UserID, loginAttemptLimit, loginAttemptWindow) {
		b.sendHTML(chatID, "⚠️ Too many attempts. Please try again later.")
		return
	}
	session.InputStep = models.InputRegisterEmail
	b.saveSession(ctx, session)
	b.sendHTML(chatID, "📧 Enter the email for your new account:")
}

func (b *Bot) handleRegisterEmail(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	email := strings.TrimSpace(msg.Text)
	if !strings.Contains(email, "@") {
		b.sendHTML(msg.Chat.ID, "⚠️ That does not look like an email. Please try again:")
		return
	}
	session.SetTemp(tempRegisterEmail, email)
	session.InputStep = models.InputRegisterName
	b.saveSession(ctx, session)
	b.sendHTML(msg.Chat.ID, "👤 Enter your full name:")
}

func (b *Bot) handleRegisterName(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.Text)
	if name == "" {
		b.sendHTML(msg.Chat.ID, "⚠️ Please enter your full name:")
		return
	}
	session.SetTemp(tempRegisterName, name)
	session.InputStep = models.InputRegisterPassword
	b.saveSession(ctx, session)
	b.sendHTML(msg.Chat.ID, fmt.Sprintf("🔑 Choose a password (at least %d characters):", models.MinPasswordLength))
}

// handleRegisterPassword submits the registration. The password is the last
// answer so it is never kept between prompts.
func (b *Bot) handleRegisterPassword(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	b.forgetMessage(ctx, msg)

	res, err := b.accounts.Register(ctx, models.RegisterRequest{
		Email:    session.GetString(tempRegisterEmail),
		FullName: session.GetString(tempRegisterName),
		Password: msg.Text,
	})
	if errors.Is(err, service.ErrPasswordTooShort) {
		b.sendHTML(chatID, b.getErrorMessage(err)+"\nChoose another password:")
		return
	}

	email := session.GetString(tempRegisterEmail)
	delete(session.TempData, tempRegisterEmail)
	delete(session.TempData, tempRegisterName)
	if err != nil {
		session.InputStep = models.InputNone
		b.saveSession(ctx, session)
		b.sendHTML(chatID, b.getErrorMessage(err)+"\nUse /register to try again.")
		return
	}

	if res.Email != "" {
		email = res.Email
	}
	session.SetTemp(tempVerifyEmail, email)
	session.InputStep = models.InputVerifyCode
	b.saveSession(ctx, session)
	b.sendHTML(chatID, fmt.Sprintf("✉️ We sent a %d-digit code to <b>%s</b>. Enter it here to activate your account, or use /resend_code.",
		models.VerificationCodeLength, html.EscapeString(email)))
}

func (b *Bot) handleVerifyCode(ctx context.Context, session *models.Session, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	email := session.GetString(tempVerifyEmail)
	if email == "" {
		session.InputStep = models.InputNone
		b.saveSession(ctx, session)
		b.sendHTML(chatID, "Nothing to verify. Use /register to create an account.")
		return
	}

	if err := b.accounts.VerifyEmail(ctx, email, msg.Text); err != nil {
		// the prompt stays open so a mistyped or expired code can be retried
		b.sendHTML(chatID, b.getErrorMessage(err)+"\nEnter the code again, or use /resend_code.")
		return
	}

	session.InputStep = models.InputNone
	delete(session.TempData, tempVerifyEmail)
	b.saveSession(ctx, session)
	b.sendHTML(chatID, "✅ Your email is verified. Use /login to sign in.")
}

func (b *Bot) handleResendCode(ctx context.Context, session *models.Session, chatID int64) {
	email := session.GetString(tempVerifyEmail)
	if email == "" {
		b.sendHTML(chatID, "Nothing to verify. Use /register to create an account.")
		return
	}
	if err := b.accounts.ResendVerification(ctx, email); err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	session.InputStep = models.InputVerifyCode
	b.saveSession(ctx, session)
	b.sendHTML(chatID, fmt.Sprintf("✉️ A new code is on its way to <b>%s</b>. Enter it here:", html.EscapeString(email)))
}
