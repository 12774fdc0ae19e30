package model

import (
	"time"
)

// ResourceRef is one entry of an appointment's resources list.
type ResourceRef struct {
	ID FlexInt `json:"id"`
}

// RawAppointment is an appointment record exactly as the v2/appointment
// endpoint returns it, before any cleaning.
type RawAppointment struct {
	ID                 FlexInt       `json:"id"`
	Active             FlexBool      `json:"active"`
	CreatedAt          FlexInt       `json:"created_at"`
	ModifiedAt         FlexInt       `json:"modified_at"`
	StartAt            FlexInt       `json:"start_at"`
	Description        string        `json:"description"`
	CancellationReason string        `json:"cancellation_reason"`
	TypeID             FlexInt       `json:"type_id"`
	StatusID           FlexInt       `json:"status_id"`
	AnimalID           *FlexInt      `json:"animal_id"`
	ConsultID          *FlexInt      `json:"consult_id"`
	ContactID          *FlexInt      `json:"contact_id"`
	SalesResource      *FlexInt      `json:"sales_resource"`
	Resources          []ResourceRef `json:"resources"`
}

// Resource is one record of the v1/resource endpoint, used to join
// ownership and display names onto appointments.
type Resource struct {
	ID          FlexInt `json:"id"`
	OwnershipID FlexInt `json:"ownership_id"`
	Name        string  `json:"name"`
}

// TranslationRecord is the id/name pair shape shared by the lookup
// endpoints (appointmenttype, appointmentstatus).
type TranslationRecord struct {
	ID   FlexInt `json:"id"`
	Name string  `json:"name"`
}

// Appointment is a cleaned warehouse row. Raw numeric codes are kept
// alongside their translated names (ApptTypeID/TypeName,
// ApptStatusID/StatusName) so nothing is lost in translation.
type Appointment struct {
	LocationID             int64     `db:"location_id" json:"location_id"`
	DivisionID             int64     `db:"division_id" json:"division_id"`
	EzyVetID               int64     `db:"ezyvet_id" json:"ezyvet_id"`
	CreatedAt              int64     `db:"created_at" json:"created_at"`
	ModifiedAt             int64     `db:"modified_at" json:"modified_at"`
	Active                 int       `db:"active" json:"active"`
	StartAt                int64     `db:"start_at" json:"start_at"`
	TypeName               string    `db:"type_id" json:"type_id"`
	ApptTypeID             int64     `db:"appt_type_id" json:"appt_type_id"`
	StatusName             string    `db:"status_id" json:"status_id"`
	ApptStatusID           int64     `db:"appt_status_id" json:"appt_status_id"`
	Description            string    `db:"description" json:"description"`
	CancellationReason     string    `db:"cancellation_reason" json:"cancellation_reason"`
	AnimalID               *int64    `db:"animal_id" json:"animal_id"`
	ConsultID              *int64    `db:"consult_id" json:"consult_id"`
	ContactID              *int64    `db:"contact_id" json:"contact_id"`
	SalesResource          *int64    `db:"sales_resource" json:"sales_resource"`
	ResourceID             *int64    `db:"resource_id" json:"resource_id"`
	OwnershipID            *int64    `db:"ownership_id" json:"ownership_id"`
	PrimaryResourceName    *string   `db:"primary_resource_name" json:"primary_resource_name"`
	SalesResourceName      *string   `db:"sales_resource_name" json:"sales_resource_name"`
	DatetimeCreated        time.Time `db:"datetime_created" json:"datetime_created"`
	DatetimeModified       time.Time `db:"datetime_modified" json:"datetime_modified"`
	DatetimeStartAt        time.Time `db:"datetime_start_at" json:"datetime_start_at"`
	IsMedical              int       `db:"is_medical" json:"is_medical"`
	FirstAppt              *bool     `db:"first_appt" json:"first_appt"`
	IsShelterAnimalBooking bool      `db:"is_shelter_animal_booking" json:"is_shelter_animal_booking"`
}
