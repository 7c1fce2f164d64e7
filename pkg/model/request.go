package model

type RecurrenceRequest struct {
	Kind  string   `json:"kind" validate:"omitempty,recurrence_kind"`
	Count int      `json:"count,omitempty" validate:"omitempty"`
	Dates []string `json:"dates,omitempty" validate:"omitempty,max=366,dive,iso_date"`
}

type CreateSlotRequest struct {
	ProviderID string             `json:"-" validate:"required,min=1,max=64"`
	Date       string             `json:"date" validate:"required,iso_date"`
	StartTime  string             `json:"start_time" validate:"required,hhmm"`
	EndTime    string             `json:"end_time" validate:"required,hhmm"`
	Recurrence *RecurrenceRequest `json:"recurrence,omitempty" validate:"omitempty"`
}

type ReserveRequest struct {
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
}

type TokenRequest struct {
	Token string `json:"token" validate:"required,min=16,max=512"`
}
