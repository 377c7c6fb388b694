package task

import (
	"time"

	"github.com/google/uuid"
)

// Activity - запись журнала действий пользователя
type Activity struct {
	UUID      uuid.UUID `json:"uuid" db:"uuid"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	Action    string    `json:"action" db:"action"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewActivity(ownerID uuid.UUID, action string) *Activity {
	return &Activity{
		UUID:    uuid.New(),
		OwnerID: ownerID,
		Action:  action,
	}
}
