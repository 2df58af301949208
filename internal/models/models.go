package models

import "time"

type User struct {
	ID          string
	Email       string
	PassHash    []byte
	IsAdmin     bool
	IsVerified  bool
	ForgotToken *string
	Profile     Profile
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

type Profile struct {
	Firstname *string    `json:"firstname"`
	Lastname  *string    `json:"lastname"`
	BirthDay  *time.Time `json:"birthDay"`
	Gender    *Gender    `json:"gender"`
	Address   *string    `json:"address"`
}

type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	IPAddress string
	CreatedAt time.Time
}

// IsExpired reports whether the token is past its stored expiry at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type PostStatus string

const (
	PostPublic  PostStatus = "PUBLIC"
	PostPrivate PostStatus = "PRIVATE"
	PostDraft   PostStatus = "DRAFT"
)

type Post struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Status     PostStatus `json:"status"`
	AuthorID   string     `json:"authorId"`
	CategoryID *string    `json:"categoryId"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// Message is the email job handed to the mail delivery pipeline.
type Message struct {
	Email   string  `json:"to"`
	Link    string  `json:"link"`
	Purpose Purpose `json:"purpose"`
}
