package email

import (
	"fmt"
	"strings"
)

type ConfirmationEmail struct {
	Subject string
	Body    string
}

type ReservationDetails struct {
	FieldName   string
	Date        string
	TimeRange   string
	TotalAmount int64
}

type GameDetails struct {
	FieldName      string
	Date           string
	TimeRange      string
	SpotsRemaining int64
}

// FormatMinuteRange renders a minutes-of-day pair as "HH:MM - HH:MM".
func FormatMinuteRange(startMin, endMin int64) string {
	return fmt.Sprintf("%02d:%02d - %02d:%02d",
		startMin/60, startMin%60, endMin/60, endMin%60)
}

func BuildReservationConfirmation(details ReservationDetails) ConfirmationEmail {
	fieldName := strings.TrimSpace(details.FieldName)
	if fieldName == "" {
		fieldName = "the field"
	}

	lines := []string{
		"Your field reservation is confirmed.",
		"",
		fmt.Sprintf("Field: %s", fieldName),
		fmt.Sprintf("Date: %s", strings.TrimSpace(details.Date)),
		fmt.Sprintf("Time: %s", strings.TrimSpace(details.TimeRange)),
		fmt.Sprintf("Total: %d CRC", details.TotalAmount),
		"",
		"Complete payment to keep your slot. Unpaid reservations are released automatically.",
	}

	return ConfirmationEmail{
		Subject: fmt.Sprintf("Reservation Confirmed - %s", fieldName),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildGameJoinConfirmation(details GameDetails) ConfirmationEmail {
	fieldName := strings.TrimSpace(details.FieldName)
	if fieldName == "" {
		fieldName = "the field"
	}

	lines := []string{
		"You're in! See you at the mejenga.",
		"",
		fmt.Sprintf("Field: %s", fieldName),
		fmt.Sprintf("Date: %s", strings.TrimSpace(details.Date)),
		fmt.Sprintf("Time: %s", strings.TrimSpace(details.TimeRange)),
		fmt.Sprintf("Spots remaining: %d", details.SpotsRemaining),
	}

	return ConfirmationEmail{
		Subject: fmt.Sprintf("Game Joined - %s", fieldName),
		Body:    strings.Join(lines, "\n"),
	}
}
