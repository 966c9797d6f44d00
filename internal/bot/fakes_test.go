package bot

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"clinicbook/internal/clinic"
	"clinicbook/internal/config"
	"clinicbook/internal/domain"
	"clinicbook/internal/events"
	"clinicbook/internal/models"
	"clinicbook/internal/repository"
	"clinicbook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	kind      string
	chatID    int64
	messageID int
	text      string
	keyboard  *tgbotapi.InlineKeyboardMarkup
}

type mockTelegramService struct {
	domain.TelegramService

	mu          sync.Mutex
	updatesChan chan tgbotapi.Update
	sent        []sentMessage
	answers     []string
	documents   []string
	requests    []tgbotapi.Chattable
}

func (m *mockTelegramService) record(msg sentMessage) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return tgbotapi.Message{MessageID: 100 + len(m.sent)}, nil
}

func (m *mockTelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	return m.record(sentMessage{kind: "text", chatID: chatID, text: text})
}

func (m *mockTelegramService) SendHTML(chatID int64, text string) (tgbotapi.Message, error) {
	return m.record(sentMessage{kind: "html", chatID: chatID, text: text})
}

func (m *mockTelegramService) SendWithInlineKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	return m.record(sentMessage{kind: "keyboard", chatID: chatID, text: text, keyboard: &kb})
}

func (m *mockTelegramService) EditMessage(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	return m.record(sentMessage{kind: "edit", chatID: chatID, messageID: messageID, text: text, keyboard: kb})
}

func (m *mockTelegramService) SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error) {
	m.mu.Lock()
	m.documents = append(m.documents, path)
	m.mu.Unlock()
	return m.record(sentMessage{kind: "document", chatID: chatID, text: caption})
}

func (m *mockTelegramService) AnswerCallback(callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *mockTelegramService) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockTelegramService) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updatesChan
}

func (m *mockTelegramService) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "clinic_test_bot"}
}

func (m *mockTelegramService) StopReceivingUpdates() {}

func (m *mockTelegramService) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockTelegramService) lastAnswer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.answers) == 0 {
		return ""
	}
	return m.answers[len(m.answers)-1]
}

func (m *mockTelegramService) allText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for _, s := range m.sent {
		sb.WriteString(s.text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// callbackData lists the callback data of the last keyboard that was rendered.
func (m *mockTelegramService) callbackData() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if kb := m.sent[i].keyboard; kb != nil {
			return keyboardData(*kb)
		}
	}
	return nil
}

func keyboardData(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

type fakeClinic struct {
	mu          sync.Mutex
	services    []models.Service
	doctors     []models.Doctor
	slots       []models.TimeSlot
	suggestions []models.SmartSuggestion
	bookings    []models.Booking
	slotsErr    error
	createErr   error
	created     []models.CreateBookingRequest
	cancelled   []string
	tokens      []string

	profile       models.User
	profileEdits  []models.UpdateProfileRequest
	passwords     []models.ChangePasswordRequest
	dashboard     *models.Dashboard
	registrations []models.RegisterRequest
	verified      []models.VerifyEmailRequest
	resent        []string
}

var _ domain.ClinicAPI = (*fakeClinic)(nil)

func newFakeClinic() *fakeClinic {
	return &fakeClinic{
		profile: models.User{ID: "p1", Email: "a@clinic.test", FullName: "Nguyen Van A", Role: models.RolePatient, IsActive: true},
		services: []models.Service{
			{ID: "s1", Name: "Cardiology", DurationMinutes: 30, Price: 150000, IsActive: true},
			{ID: "s2", Name: "Dermatology", DurationMinutes: 20, Price: 90000, IsActive: true},
		},
		doctors: []models.Doctor{
			{ID: "d1", FullName: "Dr. An", Specialties: []string{"Cardiology"}, Rating: 4.8, IsActive: true},
			{ID: "d2", FullName: "Dr. Binh", Specialties: []string{"Dermatology"}, IsActive: true},
		},
		slots: []models.TimeSlot{
			{Time: "09:00", Available: true},
			{Time: "10:00", Available: false},
			{Time: "14:00", Available: true},
		},
		suggestions: []models.SmartSuggestion{
			{Date: "2024-06-13", Time: "10:30", AvailableSlots: 2, Score: 0.9},
		},
		bookings: []models.Booking{
			{ID: "b1", BookingDate: "2024-05-01", StartTime: "09:00", Status: models.StatusCompleted},
			{ID: "b2", BookingDate: "2024-06-20", StartTime: "08:30", Status: models.StatusConfirmed,
				Service: &models.BookingService{ID: "s1", Name: "Cardiology"}, Doctor: &models.BookingDoctor{ID: "d1", FullName: "Dr. An"}},
			{ID: "b3", BookingDate: "2024-06-18", StartTime: "14:00", Status: models.StatusPending},
		},
	}
}

func (f *fakeClinic) seen(ctx context.Context) {
	f.mu.Lock()
	f.tokens = append(f.tokens, clinic.TokenFrom(ctx))
	f.mu.Unlock()
}

func (f *fakeClinic) ListServices(ctx context.Context, _ domain.ServiceFilter) ([]models.Service, error) {
	f.seen(ctx)
	return append([]models.Service(nil), f.services...), nil
}

func (f *fakeClinic) ListDoctors(ctx context.Context, filter domain.DoctorFilter) ([]models.Doctor, error) {
	f.seen(ctx)
	var out []models.Doctor
	for _, d := range f.doctors {
		if filter.Specialty == "" || d.PrimarySpecialty() == filter.Specialty {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeClinic) GetAvailableSlots(ctx context.Context, _ domain.SlotQuery) ([]models.TimeSlot, error) {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slotsErr != nil {
		return nil, f.slotsErr
	}
	return append([]models.TimeSlot(nil), f.slots...), nil
}

func (f *fakeClinic) GetSuggestions(ctx context.Context, _ domain.SuggestionQuery) ([]models.SmartSuggestion, error) {
	f.seen(ctx)
	return append([]models.SmartSuggestion(nil), f.suggestions...), nil
}

func (f *fakeClinic) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.Booking{
		ID:          "new-1",
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		ServiceID:   req.ServiceID,
		BookingDate: req.BookingDate,
		StartTime:   req.StartTime,
		Status:      models.StatusPending,
	}, nil
}

func (f *fakeClinic) ListMyBookings(ctx context.Context) ([]models.Booking, error) {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Booking(nil), f.bookings...), nil
}

func (f *fakeClinic) CancelBooking(ctx context.Context, id, _ string) (*models.Booking, error) {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	for i := range f.bookings {
		if f.bookings[i].ID == id {
			f.bookings[i].Status = models.StatusCancelled
			b := f.bookings[i]
			return &b, nil
		}
	}
	return nil, &clinic.APIError{Status: 404, Message: "Booking not found"}
}

func (f *fakeClinic) Login(_ context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	if req.Password != "secret" {
		return nil, &clinic.APIError{Status: 401, Message: "Invalid credentials"}
	}
	return &models.LoginResult{
		User:         models.User{ID: "p1", Email: req.Email, FullName: "Nguyen Van A", Role: models.RolePatient},
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}, nil
}

func (f *fakeClinic) Logout(context.Context, string) error { return nil }

func (f *fakeClinic) GetMe(ctx context.Context) (*models.User, error) {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.profile
	return &u, nil
}

func (f *fakeClinic) UpdateMe(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileEdits = append(f.profileEdits, req)
	if req.FullName != "" {
		f.profile.FullName = req.FullName
	}
	if req.Phone != "" {
		f.profile.Phone = req.Phone
	}
	u := f.profile
	return &u, nil
}

func (f *fakeClinic) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) error {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.CurrentPassword != "secret" {
		return &clinic.APIError{Status: 400, Message: "Current password is incorrect"}
	}
	f.passwords = append(f.passwords, req)
	return nil
}

func (f *fakeClinic) GetDashboard(ctx context.Context) (*models.Dashboard, error) {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dashboard == nil {
		return &models.Dashboard{}, nil
	}
	d := *f.dashboard
	return &d, nil
}

func (f *fakeClinic) Register(_ context.Context, req models.RegisterRequest) (*models.RegisterResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Email == "taken@clinic.test" {
		return nil, &clinic.APIError{Status: 409, Message: "Email already registered"}
	}
	f.registrations = append(f.registrations, req)
	return &models.RegisterResult{UserID: "u9", Email: req.Email}, nil
}

func (f *fakeClinic) VerifyEmail(_ context.Context, req models.VerifyEmailRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.OTP != "123456" {
		return &clinic.APIError{Status: 400, Message: "Invalid or expired code"}
	}
	f.verified = append(f.verified, req)
	return nil
}

func (f *fakeClinic) ResendVerification(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resent = append(f.resent, email)
	return nil
}

type testEnv struct {
	bot      *Bot
	tg       *mockTelegramService
	api      *fakeClinic
	sessions *service.SessionService
	cfg      *config.Config
}

var testNow = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		App:      config.AppConfig{TimeZone: "UTC"},
		Telegram: config.TelegramConfig{BotToken: "test"},
		Booking: config.BookingConfig{
			SuggestionLimit:     3,
			SuggestionDays:      7,
			SuccessDelaySeconds: 60,
			MaxAdvanceDays:      60,
			NotesMaxLength:      20,
		},
		Bot: config.BotConfig{
			RateLimitRPS:      100,
			RateLimitBurst:    100,
			SessionTTLSeconds: 3600,
			PaginationSize:    2,
		},
		Exports: config.ExportConfig{Path: t.TempDir()},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	logger := zerolog.New(io.Discard)
	api := newFakeClinic()
	tg := &mockTelegramService{updatesChan: make(chan tgbotapi.Update, 1)}
	sessions := service.NewSessionService(repository.NewMemorySessionRepository(time.Hour), &logger)

	b, err := NewBot(
		tg, cfg, sessions, api,
		service.NewAuthService(api, &logger),
		service.NewAppointmentService(api, nil, &logger),
		service.NewAccountService(api, &logger),
		events.NewEventBus(&logger),
		NewMetrics(prometheus.NewRegistry()),
		&logger,
	)
	require.NoError(t, err)
	b.now = func() time.Time { return testNow }

	return &testEnv{bot: b, tg: tg, api: api, sessions: sessions, cfg: cfg}
}

// rebuild returns a fresh bot sharing the session store, as after a restart.
func (e *testEnv) rebuild(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	b, err := NewBot(
		e.tg, e.cfg, e.sessions, e.api,
		service.NewAuthService(e.api, &logger),
		service.NewAppointmentService(e.api, nil, &logger),
		service.NewAccountService(e.api, &logger),
		nil, nil, &logger,
	)
	require.NoError(t, err)
	b.now = func() time.Time { return testNow }
	return &testEnv{bot: b, tg: e.tg, api: e.api, sessions: e.sessions, cfg: e.cfg}
}

func (e *testEnv) login(t *testing.T, userID int64) {
	t.Helper()
	ctx := context.Background()
	session, err := e.sessions.Load(ctx, userID)
	require.NoError(t, err)
	session.AccessToken = "access-token"
	session.User = &models.User{ID: "p1", FullName: "Nguyen Van A", Email: "a@clinic.test", Role: models.RolePatient}
	require.NoError(t, e.sessions.Save(ctx, session))
}

func (e *testEnv) session(t *testing.T, userID int64) *models.Session {
	t.Helper()
	s, err := e.sessions.Load(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) send(update tgbotapi.Update) {
	e.bot.processUpdate(context.Background(), update)
}

func command(userID int64, text string) tgbotapi.Update {
	cmd := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func text(userID int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      body,
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 50, Chat: &tgbotapi.Chat{ID: userID}},
	}}
}

func bgCtx() context.Context { return context.Background() }
