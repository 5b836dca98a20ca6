package models

const (
	DefaultReputation = 10
	DefaultStatus     = "work 🟢"
)

type User struct {
	ID         int64     `json:"-"`
	Username   string    `json:"username"`
	Reputation float64   `json:"reputation"`
	Status     string    `json:"status"`
	CreatedAt  Timestamp `json:"created_at"`
}

func NewUser(id int64, username string) *User {
	return &User{
		ID:         id,
		Username:   username,
		Reputation: DefaultReputation,
		Status:     DefaultStatus,
		CreatedAt:  Now(),
	}
}

// DisplayName falls back to "Unknown" for users without a Telegram username.
func (u *User) DisplayName() string {
	if u == nil || u.Username == "" {
		return "Unknown"
	}
	return u.Username
}

// UserStats is one row of the operator statistics view.
type UserStats struct {
	UserID     int64
	Username   string
	Reputation float64
	Queued     int
	InWork     int
	Successful int
	Blocked    int
}
