package models

import "time"

type Step string

const (
	StepAwaitingNumber     Step = "awaiting_number"
	StepAwaitingFlightTime Step = "awaiting_flight_time"
	StepConfirmFlight      Step = "confirm_flight"
)

// ConversationState tracks a multi-step dialog for one actor.
type ConversationState struct {
	ActorID    int64         `json:"actor_id"`
	Step       Step          `json:"step"`
	Record     *NumberRecord `json:"record,omitempty"`
	FlightTime string        `json:"flight_time,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
