package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"clinicbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Register(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/register", r.URL.Path)
			var got models.RegisterRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, "new@clinic.test", got.Email)
			assert.Equal(t, "Tran Thi B", got.FullName)
			assert.Equal(t, models.RolePatient, got.Role)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true,"message":"Registered","data":{"userId":"u9","email":"new@clinic.test"}}`))
		})

		res, err := c.Register(context.Background(), models.RegisterRequest{
			Email: "new@clinic.test", Password: "secret1", FullName: "Tran Thi B", Role: models.RolePatient,
		})
		require.NoError(t, err)
		assert.Equal(t, "u9", res.UserID)
		assert.Equal(t, "new@clinic.test", res.Email)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"EMAIL_EXISTS","message":"Email already registered"}}`))
		})

		_, err := c.Register(context.Background(), models.RegisterRequest{Email: "a@b.c", Password: "secret1", FullName: "A"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusConflict, apiErr.Status)
		assert.Equal(t, "EMAIL_EXISTS", apiErr.Code)
	})

	t.Run("UnsuccessfulEnvelope", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"Registration closed"}`))
		})

		_, err := c.Register(context.Background(), models.RegisterRequest{Email: "a@b.c"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "Registration closed", apiErr.Message)
	})
}

func TestClient_VerifyEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/verify-email", r.URL.Path)
		var got models.VerifyEmailRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.OTP != "123456" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid or expired code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Email verified"}`))
	})

	require.NoError(t, c.VerifyEmail(context.Background(), models.VerifyEmailRequest{Email: "a@b.c", OTP: "123456"}))

	err := c.VerifyEmail(context.Background(), models.VerifyEmailRequest{Email: "a@b.c", OTP: "000000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid or expired code")
}

func TestClient_ResendVerification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/resend-verification", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])
		_, _ = w.Write([]byte(`{"success":true,"message":"sent"}`))
	})

	require.NoError(t, c.ResendVerification(context.Background(), "a@b.c"))
}

func TestClient_Profile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p1","email":"a@b.c","fullName":"Nguyen Van A",
				"phone":"0901234567","gender":"MALE","role":"PATIENT","isActive":true}}`))
		case http.MethodPatch:
			var got map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, map[string]any{"phone": "0911111111"}, got, "only set fields are sent")
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p1","email":"a@b.c","fullName":"Nguyen Van A",
				"phone":"0911111111","role":"PATIENT","isActive":true}}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})
	ctx := WithToken(context.Background(), "tok")

	me, err := c.GetMe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", me.FullName)
	assert.Equal(t, models.GenderMale, me.Gender)

	updated, err := c.UpdateMe(ctx, models.UpdateProfileRequest{Phone: "0911111111"})
	require.NoError(t, err)
	assert.Equal(t, "0911111111", updated.Phone)
}

func TestClient_GetMeEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	_, err := c.GetMe(context.Background())
	assert.Error(t, err)
}

func TestClient_ChangePassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/users/me/password", r.URL.Path)
		var got models.ChangePasswordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.CurrentPassword != "old-secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Current password is incorrect"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Password changed"}`))
	})

	require.NoError(t, c.ChangePassword(context.Background(), models.ChangePasswordRequest{
		CurrentPassword: "old-secret", NewPassword: "new-secret",
	}))

	err := c.ChangePassword(context.Background(), models.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "new-secret"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Current password is incorrect", apiErr.Message)
}

func TestClient_GetDashboard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/bookings/dashboard/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{
			"stats":{"upcomingBookings":2,"completedBookings":5,"waitingBookings":1,"totalBookings":9},
			"nextBooking":{"id":"b7","bookingDate":"2024-06-20","startTime":"08:30","endTime":"09:00","status":"CONFIRMED",
				"service":{"id":"s1","name":"Cardiology"},"doctor":{"id":"d1","fullName":"Dr. An"}}}}`))
	})

	dash, err := c.GetDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{UpcomingBookings: 2, CompletedBookings: 5, WaitingBookings: 1, TotalBookings: 9}, dash.Stats)
	require.NotNil(t, dash.NextBooking)
	assert.Equal(t, "b7", dash.NextBooking.ID)
	assert.Equal(t, "09:00", dash.NextBooking.EndTime)
	assert.Equal(t, "Dr. An", dash.NextBooking.Doctor.FullName)
}

func TestClient_GetDashboardWithoutNextBooking(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"stats":{"totalBookings":0},"nextBooking":null}}`))
	})

	dash, err := c.GetDashboard(context.Background())
	require.NoError(t, err)
	assert.Nil(t, dash.NextBooking)
	assert.Zero(t, dash.Stats.TotalBookings)
}
