package booking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"coolcar/internal/domain"
	"coolcar/internal/store"
)

var testNow = time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC) // a Wednesday

func testBook(t *testing.T, s domain.BlobStore) *Book {
	t.Helper()
	return NewBook(context.Background(), BookConfig{
		Store:  s,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func fill(t *testing.T, d *Draft) {
	t.Helper()
	values := map[domain.BookingField]string{
		domain.FieldCustomerName:  "Aminata Sesay",
		domain.FieldPhoneNumber:   "+232 78 590 287",
		domain.FieldVehicleMake:   "Toyota",
		domain.FieldVehicleModel:  "Corolla",
		domain.FieldVehicleYear:   "2015",
		domain.FieldServiceType:   "Oil change",
		domain.FieldPreferredDate: "2026-03-12",
		domain.FieldPreferredTime: "10:00",
	}
	for _, f := range domain.RequiredBookingFields {
		if err := d.UpdateField(f, values[f]); err != nil {
			t.Fatalf("UpdateField(%s): %v", f, err)
		}
	}
}

func TestDraft_StateTransitions(t *testing.T) {
	d := NewDraft(testBook(t, nil))
	if d.State() != StateEmpty {
		t.Fatalf("new draft should be empty, got %s", d.State())
	}
	if f, ok := d.NextRequiredField(); !ok || f != domain.FieldCustomerName {
		t.Fatalf("first required field should be customerName, got %s", f)
	}

	d.UpdateField(domain.FieldCustomerName, "Aminata")
	if d.State() != StateCollecting {
		t.Fatalf("expected collecting, got %s", d.State())
	}
	if f, _ := d.NextRequiredField(); f != domain.FieldPhoneNumber {
		t.Fatalf("expected phoneNumber next, got %s", f)
	}

	fill(t, d)
	if d.State() != StateReady {
		t.Fatalf("expected ready, got %s", d.State())
	}
	if _, ok := d.NextRequiredField(); ok {
		t.Fatal("ready draft has no next field")
	}
	p := d.Progress()
	if p.Filled != 8 || p.Total != 8 || !p.Completed {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestDraft_SubmitIncompleteIsRejected(t *testing.T) {
	book := testBook(t, nil)
	d := NewDraft(book)
	d.UpdateField(domain.FieldCustomerName, "Aminata")

	if _, err := d.Submit(context.Background()); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if len(book.List()) != 0 {
		t.Fatal("partial draft must never be persisted")
	}
	if d.Details().CustomerName != "Aminata" {
		t.Fatal("rejected submit must leave the draft untouched")
	}
}

func TestDraft_SubmitPersistsAndResets(t *testing.T) {
	s := store.NewMemory()
	book := testBook(t, s)
	d := NewDraft(book)
	d.now = func() time.Time { return testNow }
	fill(t, d)

	bk, err := d.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if bk.ID == "" || bk.Status != domain.StatusPending || !bk.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected booking %+v", bk)
	}
	if d.State() != StateEmpty {
		t.Fatalf("draft should be empty after submit, got %s", d.State())
	}

	data, err := s.Get(context.Background(), domain.NamespaceBookings)
	if err != nil {
		t.Fatalf("bookings not persisted: %v", err)
	}
	var stored []domain.Booking
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != bk.ID || stored[0].VehicleMake != "Toyota" {
		t.Fatalf("unexpected persisted list %+v", stored)
	}

	reloaded := testBook(t, s)
	if len(reloaded.List()) != 1 {
		t.Fatal("bookings should survive a reload")
	}
}

func TestDraft_CancelIsAbsorbing(t *testing.T) {
	d := NewDraft(testBook(t, nil))
	d.UpdateField(domain.FieldCustomerName, "Aminata")
	d.Cancel()

	if d.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %s", d.State())
	}
	if err := d.UpdateField(domain.FieldPhoneNumber, "0771234567"); !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled on update, got %v", err)
	}
	if _, err := d.Submit(context.Background()); !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled on submit, got %v", err)
	}

	d.Reset()
	if d.State() != StateEmpty {
		t.Fatalf("reset should start a new empty draft, got %s", d.State())
	}
}

func TestDraft_UnknownField(t *testing.T) {
	d := NewDraft(nil)
	if err := d.UpdateField("favouriteColour", "red"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		field domain.BookingField
		value string
		ok    bool
	}{
		{domain.FieldPhoneNumber, "+232 78590287", true},
		{domain.FieldPhoneNumber, "077-123-4567", true},
		{domain.FieldPhoneNumber, "12345", false},
		{domain.FieldPhoneNumber, "call me", false},
		{domain.FieldEmail, "", true},
		{domain.FieldEmail, "a@b.sl", true},
		{domain.FieldEmail, "not-an-email", false},
		{domain.FieldVehicleYear, "1900", true},
		{domain.FieldVehicleYear, "2026", true},
		{domain.FieldVehicleYear, "2027", false},
		{domain.FieldVehicleYear, "1899", false},
		{domain.FieldVehicleYear, "15", false},
		{domain.FieldVehicleYear, "2015abc", false},
		{domain.FieldCustomerName, "  ", false},
		{domain.FieldServiceType, "Brakes", true},
		{domain.FieldDescription, "", true},
	}
	for _, tt := range tests {
		err := Validate(tt.field, tt.value, testNow)
		if (err == nil) != tt.ok {
			t.Errorf("Validate(%s, %q) = %v, want ok=%v", tt.field, tt.value, err, tt.ok)
		}
		var ve *ValidationError
		if err != nil && !errors.As(err, &ve) {
			t.Errorf("expected *ValidationError, got %T", err)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-04-01", "2026-04-01"},
		{"1 April 2026", "2026-04-01"},
		{"April 1, 2026", "2026-04-01"},
		{"today", "2026-03-11"},
		{"Tomorrow please", "2026-03-12"},
		{"wednesday", "2026-03-11"},
		{"next Friday", "2026-03-13"},
		{"monday", "2026-03-16"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in, testNow)
		if err != nil || got != tt.want {
			t.Errorf("ParseDate(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseDate("whenever", testNow); err == nil {
		t.Error("expected error for unparseable date")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9", "09:00"},
		{"14:30", "14:30"},
		{"2pm", "14:00"},
		{"2:15 PM", "14:15"},
		{"9am", "09:00"},
		{"12pm", "12:00"},
		{"12am", "00:00"},
		{"12:30 am", "00:30"},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseTime(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	for _, bad := range []string{"25:00", "13pm", "noon-ish", "9:75"} {
		if _, err := ParseTime(bad); err == nil {
			t.Errorf("ParseTime(%q) should fail", bad)
		}
	}
}

func TestAvailableSlots(t *testing.T) {
	book := testBook(t, nil)
	ctx := context.Background()
	book.Add(ctx, domain.Booking{ID: "a", BookingDetails: domain.BookingDetails{PreferredDate: "2026-03-12", PreferredTime: "10:00"}, Status: domain.StatusPending})
	book.Add(ctx, domain.Booking{ID: "b", BookingDetails: domain.BookingDetails{PreferredDate: "2026-03-12", PreferredTime: "11:00"}, Status: domain.StatusCancelled})
	book.Add(ctx, domain.Booking{ID: "c", BookingDetails: domain.BookingDetails{PreferredDate: "2026-03-13", PreferredTime: "12:00"}, Status: domain.StatusConfirmed})

	slots := book.AvailableSlots("2026-03-12")
	if len(slots) != 10 || slots[0].Time != "08:00" || slots[9].Time != "17:00" {
		t.Fatalf("expected hourly slots 08:00-17:00, got %+v", slots)
	}
	for _, s := range slots {
		want := s.Time != "10:00"
		if s.IsAvailable != want {
			t.Errorf("slot %s available=%v, want %v", s.Time, s.IsAvailable, want)
		}
	}
}

func TestSetStatus(t *testing.T) {
	book := testBook(t, nil)
	ctx := context.Background()
	book.Add(ctx, domain.Booking{ID: "a", Status: domain.StatusPending})

	bk, err := book.SetStatus(ctx, "a", domain.StatusConfirmed)
	if err != nil || bk.Status != domain.StatusConfirmed {
		t.Fatalf("SetStatus: %+v %v", bk, err)
	}
	if _, err := book.SetStatus(ctx, "missing", domain.StatusConfirmed); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := book.SetStatus(ctx, "a", "lost"); err == nil {
		t.Fatal("expected invalid status error")
	}
	if book.Counts()[domain.StatusConfirmed] != 1 {
		t.Fatal("counts should reflect new status")
	}
}

func TestFormatDetails(t *testing.T) {
	out := FormatDetails(domain.Booking{
		BookingDetails: domain.BookingDetails{
			CustomerName:  "Aminata",
			PhoneNumber:   "0771234567",
			VehicleMake:   "Toyota",
			VehicleModel:  "Corolla",
			VehicleYear:   "2015",
			ServiceType:   "Oil change",
			PreferredDate: "2026-03-12",
			PreferredTime: "10:00",
		},
		Status: domain.StatusPending,
	})
	for _, want := range []string{"- Vehicle: 2015 Toyota Corolla", "- Date: Thursday, 12 March 2026", "- Status: Pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Email") {
		t.Error("empty optional fields should be omitted")
	}
	if FieldPrompt(domain.FieldVehicleYear) != "What year is your vehicle?" {
		t.Error("unexpected prompt")
	}
}

func TestDraft_SubmitRejectsSlotTakenMeanwhile(t *testing.T) {
	book := testBook(t, nil)
	first, second := NewDraft(book), NewDraft(book)
	fill(t, first)
	fill(t, second)

	if _, err := first.Submit(context.Background()); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := second.Submit(context.Background()); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if second.State() != StateReady || second.Details().VehicleMake != "Toyota" {
		t.Fatalf("draft should be kept after a slot conflict, got %s %+v", second.State(), second.Details())
	}
	if n := len(book.List()); n != 1 {
		t.Fatalf("expected one booking, got %d", n)
	}

	second.UpdateField(domain.FieldPreferredTime, "11:00")
	if _, err := second.Submit(context.Background()); err != nil {
		t.Fatalf("Submit with a free time: %v", err)
	}
}

func TestBook_ReserveAfterCancellation(t *testing.T) {
	ctx := context.Background()
	book := testBook(t, nil)
	slot := domain.BookingDetails{PreferredDate: "2026-03-12", PreferredTime: "10:00"}
	if err := book.Reserve(ctx, domain.Booking{ID: "a", BookingDetails: slot, Status: domain.StatusPending}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := book.Reserve(ctx, domain.Booking{ID: "b", BookingDetails: slot, Status: domain.StatusPending}); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if _, err := book.SetStatus(ctx, "a", domain.StatusCancelled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := book.Reserve(ctx, domain.Booking{ID: "b", BookingDetails: slot, Status: domain.StatusPending}); err != nil {
		t.Fatalf("cancelled booking should free the slot: %v", err)
	}
}

func TestBook_ReserveConcurrent(t *testing.T) {
	book := testBook(t, store.NewMemory())
	slot := domain.BookingDetails{PreferredDate: "2026-03-12", PreferredTime: "14:00"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if book.Reserve(context.Background(), domain.Booking{BookingDetails: slot, Status: domain.StatusPending}) == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 || len(book.List()) != 1 {
		t.Fatalf("expected exactly one reservation, got %d (%d stored)", won, len(book.List()))
	}
}
