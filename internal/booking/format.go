package booking

import (
	"fmt"
	"strings"
	"time"

	"coolcar/internal/domain"
)

var prompts = map[domain.BookingField]string{
	domain.FieldCustomerName:  "Please enter your full name:",
	domain.FieldPhoneNumber:   "Please enter your phone number:",
	domain.FieldEmail:         "Please enter your email address (optional):",
	domain.FieldVehicleMake:   "What is the make of your vehicle (e.g., Toyota, Honda)?",
	domain.FieldVehicleModel:  "What is the model of your vehicle?",
	domain.FieldVehicleYear:   "What year is your vehicle?",
	domain.FieldServiceType:   "What type of service do you need?",
	domain.FieldPreferredDate: "What date would you prefer for the service?",
	domain.FieldPreferredTime: "What time would you prefer?",
	domain.FieldDescription:   "Please describe any specific issues or requirements (optional):",
}

// FieldPrompt is the question asked for f.
func FieldPrompt(f domain.BookingField) string {
	return prompts[f]
}

// FormatDetails renders a booking for the visitor.
func FormatDetails(bk domain.Booking) string {
	var b strings.Builder
	b.WriteString("Booking Details:\n")
	writeDetails(&b, bk.BookingDetails)
	if bk.Status != "" {
		s := string(bk.Status)
		fmt.Fprintf(&b, "- Status: %s%s\n", strings.ToUpper(s[:1]), s[1:])
	}
	return strings.TrimSpace(b.String())
}

// FormatDraft renders the fields collected so far.
func FormatDraft(d domain.BookingDetails) string {
	var b strings.Builder
	b.WriteString("Booking Details:\n")
	writeDetails(&b, d)
	return strings.TrimSpace(b.String())
}

func writeDetails(b *strings.Builder, d domain.BookingDetails) {
	fmt.Fprintf(b, "- Name: %s\n", d.CustomerName)
	fmt.Fprintf(b, "- Phone: %s\n", d.PhoneNumber)
	if d.Email != "" {
		fmt.Fprintf(b, "- Email: %s\n", d.Email)
	}
	fmt.Fprintf(b, "- Vehicle: %s %s %s\n", d.VehicleYear, d.VehicleMake, d.VehicleModel)
	fmt.Fprintf(b, "- Service: %s\n", d.ServiceType)
	fmt.Fprintf(b, "- Date: %s\n", displayDate(d.PreferredDate))
	fmt.Fprintf(b, "- Time: %s\n", d.PreferredTime)
	if d.Description != "" {
		fmt.Fprintf(b, "- Description: %s\n", d.Description)
	}
}

func displayDate(s string) string {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format("Monday, 2 January 2006")
}
