package clinic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxResponseBody = 4 << 20

// Client calls the clinic REST backend. It implements domain.ClinicAPI.
type Client struct {
	baseURL    string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

var _ domain.ClinicAPI = (*Client)(nil)

// NewClient constructs a client with one uniform timeout for every call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = models.DefaultAPITimeout * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for the catalog and directory endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ListServices fetches the service catalog.
func (c *Client) ListServices(ctx context.Context, filter domain.ServiceFilter) ([]models.Service, error) {
	q := url.Values{}
	if filter.IsActive {
		q.Set("isActive", "true")
	}
	cacheKey := "clinic:services:all"
	if filter.IsActive {
		cacheKey = "clinic:services:active"
	}

	var services []models.Service
	if c.readCache(ctx, cacheKey, &services) {
		return services, nil
	}
	if err := c.doGet(ctx, "services", "/services", q, &services); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, services)
	return services, nil
}

// doctorUser is a directory entry as the backend returns it: a user with a nested profile.
type doctorUser struct {
	ID            string `json:"id"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	IsActive      bool   `json:"isActive"`
	DoctorProfile *struct {
		Specialties       []string `json:"specialties"`
		Qualifications    []string `json:"qualifications"`
		YearsOfExperience int      `json:"yearsOfExperience"`
		Bio               string   `json:"bio"`
		Rating            float64  `json:"rating"`
		ReviewCount       int      `json:"reviewCount"`
	} `json:"doctorProfile"`
}

func (u doctorUser) toDoctor() models.Doctor {
	d := models.Doctor{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		IsActive: u.IsActive,
	}
	if p := u.DoctorProfile; p != nil {
		d.Specialties = p.Specialties
		d.Qualifications = p.Qualifications
		d.YearsOfExperience = p.YearsOfExperience
		d.Bio = p.Bio
		d.Rating = p.Rating
		d.ReviewCount = p.ReviewCount
	}
	return d
}

// ListDoctors fetches the doctor directory, optionally narrowed to one specialty.
// Inactive doctors are dropped client side when filter.IsActive is set.
func (c *Client) ListDoctors(ctx context.Context, filter domain.DoctorFilter) ([]models.Doctor, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("limit", "100")
	if filter.Specialty != "" {
		q.Set("specialty", filter.Specialty)
	}
	cacheKey := "clinic:doctors:" + filter.Specialty

	var doctors []models.Doctor
	if !c.readCache(ctx, cacheKey, &doctors) {
		var env struct {
			Data struct {
				Users []doctorUser `json:"users"`
			} `json:"data"`
		}
		if err := c.doGet(ctx, "doctors", "/users/public/doctors", q, &env); err != nil {
			return nil, err
		}
		doctors = make([]models.Doctor, 0, len(env.Data.Users))
		for _, u := range env.Data.Users {
			doctors = append(doctors, u.toDoctor())
		}
		c.writeCache(ctx, cacheKey, doctors)
	}

	if !filter.IsActive {
		return doctors, nil
	}
	active := doctors[:0:0]
	for _, d := range doctors {
		if d.IsActive {
			active = append(active, d)
		}
	}
	return active, nil
}

// GetAvailableSlots fetches bookable start times. Never cached: availability moves.
func (c *Client) GetAvailableSlots(ctx context.Context, query domain.SlotQuery) ([]models.TimeSlot, error) {
	q := url.Values{}
	q.Set("doctorId", query.DoctorID)
	q.Set("date", query.Date)
	if query.PatientID != "" {
		q.Set("patientId", query.PatientID)
	}
	if query.ServiceID != "" {
		q.Set("serviceId", query.ServiceID)
	}

	var slots []models.TimeSlot
	if err := c.doGet(ctx, "available_slots", "/schedules/available-slots", q, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// GetSuggestions fetches server-ranked date/time candidates in server order.
func (c *Client) GetSuggestions(ctx context.Context, query domain.SuggestionQuery) ([]models.SmartSuggestion, error) {
	q := url.Values{}
	q.Set("doctorId", query.DoctorID)
	q.Set("serviceId", query.ServiceID)
	q.Set("startDate", query.StartDate)
	q.Set("endDate", query.EndDate)
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}

	var suggestions []models.SmartSuggestion
	if err := c.doGet(ctx, "suggestions", "/suggestions/time-slots", q, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (c *Client) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	var booking models.Booking
	if err := c.doJSON(ctx, http.MethodPost, "create_booking", "/bookings", req, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *Client) ListMyBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := c.doGet(ctx, "my_bookings", "/bookings/my-bookings", nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (c *Client) CancelBooking(ctx context.Context, id, reason string) (*models.Booking, error) {
	if id == "" {
		return nil, errors.New("clinic: booking id is required")
	}
	body := struct {
		Reason string `json:"reason,omitempty"`
	}{Reason: reason}

	var booking models.Booking
	path := "/bookings/" + url.PathEscape(id) + "/cancel"
	if err := c.doJSON(ctx, http.MethodPatch, "cancel_booking", path, body, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// envelope is the backend's wrapper around account and auth payloads.
type envelope[T any] struct {
	Success     bool   `json:"success"`
	Data        *T     `json:"data"`
	Message     string `json:"message"`
	MessageCode string `json:"messageCode"`
}

// failure turns an unsuccessful envelope into an APIError with the given status.
func (e envelope[T]) failure(status int, fallback string) *APIError {
	msg := e.Message
	if msg == "" {
		msg = fallback
	}
	return &APIError{Status: status, Code: e.MessageCode, Message: msg}
}

// Login exchanges credentials for tokens. A well-formed but unsuccessful answer is
// reported as a 401 APIError carrying the backend message.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	var env envelope[models.LoginResult]
	if err := c.doJSON(ctx, http.MethodPost, "login", "/auth/login", req, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil || env.Data.AccessToken == "" {
		return nil, env.failure(http.StatusUnauthorized, "login failed")
	}
	return env.Data, nil
}

// Register creates a patient account and triggers the verification email.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error) {
	var env envelope[models.RegisterResult]
	if err := c.doJSON(ctx, http.MethodPost, "register", "/auth/register", req, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil {
		return nil, env.failure(http.StatusBadRequest, "registration failed")
	}
	return env.Data, nil
}

func (c *Client) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	var env envelope[struct{}]
	if err := c.doJSON(ctx, http.MethodPost, "verify_email", "/auth/verify-email", req, &env); err != nil {
		return err
	}
	if !env.Success {
		return env.failure(http.StatusBadRequest, "verification failed")
	}
	return nil
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	var env envelope[struct{}]
	if err := c.doJSON(ctx, http.MethodPost, "resend_verification", "/auth/resend-verification", body, &env); err != nil {
		return err
	}
	if !env.Success {
		return env.failure(http.StatusBadRequest, "could not resend the code")
	}
	return nil
}

// GetMe fetches the signed-in user's profile.
func (c *Client) GetMe(ctx context.Context) (*models.User, error) {
	var env envelope[models.User]
	if err := c.doGet(ctx, "get_profile", "/users/me", nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, errors.New("clinic: empty profile response")
	}
	return env.Data, nil
}

func (c *Client) UpdateMe(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	var env envelope[models.User]
	if err := c.doJSON(ctx, http.MethodPatch, "update_profile", "/users/me", req, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, errors.New("clinic: empty profile response")
	}
	return env.Data, nil
}

func (c *Client) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) error {
	return c.doJSON(ctx, http.MethodPatch, "change_password", "/users/me/password", req, nil)
}

// GetDashboard fetches the patient's appointment counters and next appointment.
func (c *Client) GetDashboard(ctx context.Context) (*models.Dashboard, error) {
	var env envelope[models.Dashboard]
	if err := c.doGet(ctx, "dashboard", "/bookings/dashboard/stats", nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, errors.New("clinic: empty dashboard response")
	}
	return env.Data, nil
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}
	return c.doJSON(ctx, http.MethodPost, "logout", "/auth/logout", body, nil)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, name, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("clinic: build %s request: %w", name, err)
	}
	c.addHeaders(ctx, req)
	return c.do(req, name, out)
}

func (c *Client) doJSON(ctx context.Context, method, name, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("clinic: encode %s request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("clinic: build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(ctx, req)
	return c.do(req, name, out)
}

func (c *Client) do(req *http.Request, name string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveClinic(name, "error", time.Since(start))
		return fmt.Errorf("clinic: %s: %w", name, err)
	}
	defer resp.Body.Close()
	metrics.ObserveClinic(name, strconv.Itoa(resp.StatusCode), time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("clinic: read %s response: %w", name, err)
	}
	if resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("clinic: decode %s response: %w", name, err)
	}
	return nil
}

func (c *Client) addHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	id := RequestIDFrom(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", id)
}
