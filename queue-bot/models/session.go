package models

import (
	"time"

	"github.com/google/uuid"
)

// CodeSession is a one-time code handed to a number's owner while the
// operator waits for them to confirm.
type CodeSession struct {
	ID        uuid.UUID
	UserID    int64
	Number    string
	Code      string
	MessageID int
	CreatedAt time.Time
	Record    *NumberRecord
}
