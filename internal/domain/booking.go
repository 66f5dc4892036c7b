package domain

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// BookingField names a field of the booking form.
type BookingField string

const (
	FieldCustomerName  BookingField = "customerName"
	FieldPhoneNumber   BookingField = "phoneNumber"
	FieldEmail         BookingField = "email"
	FieldVehicleMake   BookingField = "vehicleMake"
	FieldVehicleModel  BookingField = "vehicleModel"
	FieldVehicleYear   BookingField = "vehicleYear"
	FieldServiceType   BookingField = "serviceType"
	FieldPreferredDate BookingField = "preferredDate"
	FieldPreferredTime BookingField = "preferredTime"
	FieldDescription   BookingField = "description"
)

// RequiredBookingFields lists the mandatory fields in the order they are asked for.
var RequiredBookingFields = []BookingField{
	FieldCustomerName,
	FieldPhoneNumber,
	FieldVehicleMake,
	FieldVehicleModel,
	FieldVehicleYear,
	FieldServiceType,
	FieldPreferredDate,
	FieldPreferredTime,
}

// BookingDetails holds the form values. PreferredDate is YYYY-MM-DD and
// PreferredTime is HH:MM.
type BookingDetails struct {
	CustomerName  string `json:"customerName"`
	PhoneNumber   string `json:"phoneNumber"`
	Email         string `json:"email,omitempty"`
	VehicleMake   string `json:"vehicleMake"`
	VehicleModel  string `json:"vehicleModel"`
	VehicleYear   string `json:"vehicleYear"`
	ServiceType   string `json:"serviceType"`
	PreferredDate string `json:"preferredDate"`
	PreferredTime string `json:"preferredTime"`
	Description   string `json:"description,omitempty"`
}

// Get returns the value of a field, or "" for an unknown field.
func (d *BookingDetails) Get(f BookingField) string {
	if p := d.ptr(f); p != nil {
		return *p
	}
	return ""
}

// Set assigns a field and reports whether the field is known.
func (d *BookingDetails) Set(f BookingField, v string) bool {
	p := d.ptr(f)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (d *BookingDetails) ptr(f BookingField) *string {
	switch f {
	case FieldCustomerName:
		return &d.CustomerName
	case FieldPhoneNumber:
		return &d.PhoneNumber
	case FieldEmail:
		return &d.Email
	case FieldVehicleMake:
		return &d.VehicleMake
	case FieldVehicleModel:
		return &d.VehicleModel
	case FieldVehicleYear:
		return &d.VehicleYear
	case FieldServiceType:
		return &d.ServiceType
	case FieldPreferredDate:
		return &d.PreferredDate
	case FieldPreferredTime:
		return &d.PreferredTime
	case FieldDescription:
		return &d.Description
	}
	return nil
}

// Fields returns the non-empty fields as a flat map, as sent to the form relay.
func (d *BookingDetails) Fields() map[string]string {
	out := make(map[string]string)
	for _, f := range append(append([]BookingField{}, RequiredBookingFields...), FieldEmail, FieldDescription) {
		if v := d.Get(f); v != "" {
			out[string(f)] = v
		}
	}
	return out
}

// Booking is a submitted service booking.
type Booking struct {
	ID string `json:"id"`
	BookingDetails
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// TimeSlot is one bookable hour on a given date.
type TimeSlot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"isAvailable"`
}
