package models

type UserRole string

const (
	RolePatient      UserRole = "PATIENT"
	RoleDoctor       UserRole = "DOCTOR"
	RoleReceptionist UserRole = "RECEPTIONIST"
	RoleAdmin        UserRole = "ADMIN"
)

// User is the authenticated identity returned by the clinic backend.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FullName    string   `json:"fullName"`
	Phone       string   `json:"phone,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	DateOfBirth string   `json:"dateOfBirth,omitempty"`
	Gender      Gender   `json:"gender,omitempty"`
	Address     string   `json:"address,omitempty"`
	Role        UserRole `json:"role"`
	IsActive    bool     `json:"isActive"`
}

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// UpdateProfileRequest is a partial profile update: empty fields are left as they are.
type UpdateProfileRequest struct {
	FullName    string `json:"fullName,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      Gender `json:"gender,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Empty reports whether the update would change nothing.
func (r UpdateProfileRequest) Empty() bool {
	return r == UpdateProfileRequest{}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type RegisterRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	FullName string   `json:"fullName"`
	Phone    string   `json:"phone,omitempty"`
	Role     UserRole `json:"role,omitempty"`
}

// RegisterResult identifies the account created by a registration. It stays
// inactive until the emailed code is verified.
type RegisterResult struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
