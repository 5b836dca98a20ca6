package models

type Partition string

const (
	PartitionQueue      Partition = "queue"
	PartitionInWork     Partition = "in_work"
	PartitionSuccessful Partition = "successful"
	PartitionBlocked    Partition = "blocked"
)

// NumberRecord is a phone number contributed by a user. Number keeps the raw
// text the user typed.
type NumberRecord struct {
	Number              string     `json:"number"`
	UserID              int64      `json:"user_id,string"`
	Reputation          float64    `json:"reputation"`
	AddedAt             Timestamp  `json:"added_at"`
	MovedToWorkAt       *Timestamp `json:"moved_to_work_at,omitempty"`
	FlightTime          string     `json:"flight_time,omitempty"`
	MovedToSuccessfulAt *Timestamp `json:"moved_to_successful_at,omitempty"`
	MovedToBlockedAt    *Timestamp `json:"moved_to_blocked_at,omitempty"`
}

// Same reports whether r and other name the same (number, owner) pair.
func (r *NumberRecord) Same(number string, userID int64) bool {
	return r.Number == number && r.UserID == userID
}

func (r *NumberRecord) Clone() *NumberRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.MovedToWorkAt = cloneTime(r.MovedToWorkAt)
	c.MovedToSuccessfulAt = cloneTime(r.MovedToSuccessfulAt)
	c.MovedToBlockedAt = cloneTime(r.MovedToBlockedAt)
	return &c
}

func cloneTime(t *Timestamp) *Timestamp {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// NumbersDocument is the persisted shape of all four partitions. The owner
// keyed partitions use the decimal user id as key.
type NumbersDocument struct {
	Queue      []*NumberRecord            `json:"queue"`
	InWork     map[string][]*NumberRecord `json:"in_work"`
	Successful map[string][]*NumberRecord `json:"successful"`
	Blocked    map[string][]*NumberRecord `json:"blocked"`
}

func NewNumbersDocument() *NumbersDocument {
	return &NumbersDocument{
		Queue:      []*NumberRecord{},
		InWork:     map[string][]*NumberRecord{},
		Successful: map[string][]*NumberRecord{},
		Blocked:    map[string][]*NumberRecord{},
	}
}
