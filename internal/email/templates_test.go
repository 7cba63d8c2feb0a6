package email

import (
	"strings"
	"testing"
)

func TestFormatMinuteRange(t *testing.T) {
	if got := FormatMinuteRange(1080, 1170); got != "18:00 - 19:30" {
		t.Errorf("FormatMinuteRange = %q, want 18:00 - 19:30", got)
	}
}

func TestBuildReservationConfirmation(t *testing.T) {
	confirmation := BuildReservationConfirmation(ReservationDetails{
		FieldName:   "Cancha La Sabana",
		Date:        "2030-06-15",
		TimeRange:   "18:00 - 19:30",
		TotalAmount: 7500,
	})

	if !strings.Contains(confirmation.Subject, "Cancha La Sabana") {
		t.Errorf("subject missing field name: %q", confirmation.Subject)
	}
	for _, want := range []string{"2030-06-15", "18:00 - 19:30", "7500 CRC"} {
		if !strings.Contains(confirmation.Body, want) {
			t.Errorf("body missing %q:\n%s", want, confirmation.Body)
		}
	}
}

func TestBuildGameJoinConfirmation(t *testing.T) {
	confirmation := BuildGameJoinConfirmation(GameDetails{
		FieldName:      "Cancha Norte",
		Date:           "2030-06-15",
		TimeRange:      "20:00 - 21:00",
		SpotsRemaining: 3,
	})

	if !strings.Contains(confirmation.Subject, "Game Joined") {
		t.Errorf("subject = %q", confirmation.Subject)
	}
	if !strings.Contains(confirmation.Body, "Spots remaining: 3") {
		t.Errorf("body missing spots:\n%s", confirmation.Body)
	}
}

func TestBuildConfirmation_EmptyFieldName(t *testing.T) {
	confirmation := BuildReservationConfirmation(ReservationDetails{Date: "2030-06-15"})
	if !strings.Contains(confirmation.Body, "the field") {
		t.Errorf("body should fall back to a generic field name:\n%s", confirmation.Body)
	}
}
