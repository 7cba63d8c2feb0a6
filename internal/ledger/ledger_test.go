package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tcalvo/mejenga/internal/db"
	"github.com/tcalvo/mejenga/internal/ledger"
	"github.com/tcalvo/mejenga/internal/testutil"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

const testDate = "2030-06-15"

// testClock sits well before testDate so requested slots are in the future.
var testClock = fixedClock{now: time.Date(2030, 6, 1, 12, 0, 0, 0, time.Local)}

type fixture struct {
	db      *db.DB
	ledger  *ledger.Ledger
	userID  int64
	fieldID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	database := testutil.NewTestDB(t)
	l, err := ledger.New(database, ledger.WithClock(testClock))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	userID := testutil.SeedUser(t, database, "Carlos", "carlos@example.com", "")
	fieldID := testutil.SeedField(t, database, userID, "Cancha La Sabana", 5000)

	return fixture{db: database, ledger: l, userID: userID, fieldID: fieldID}
}

func reservationRequest(f fixture, startMin, endMin int64) ledger.OccupationRequest {
	return ledger.OccupationRequest{
		FieldID:     f.fieldID,
		Date:        testDate,
		StartMin:    startMin,
		EndMin:      endMin,
		Kind:        ledger.KindReservation,
		RequesterID: f.userID,
	}
}

func gameRequest(f fixture, startMin, endMin, maxPlayers int64) ledger.OccupationRequest {
	return ledger.OccupationRequest{
		FieldID:     f.fieldID,
		Date:        testDate,
		StartMin:    startMin,
		EndMin:      endMin,
		Kind:        ledger.KindGame,
		RequesterID: f.userID,
		Game: &ledger.GameDetails{
			Title:      "Mejenga de los jueves",
			MaxPlayers: maxPlayers,
		},
	}
}

func TestRequestOccupation_ReservationPricing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 18:00-19:30 at 5000/hour is 7500
	occupation, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60+30))
	if err != nil {
		t.Fatalf("request occupation: %v", err)
	}

	if occupation.Kind != ledger.KindReservation {
		t.Errorf("Kind = %s, want reservation", occupation.Kind)
	}
	if occupation.TotalAmount != 7500 {
		t.Errorf("TotalAmount = %d, want 7500", occupation.TotalAmount)
	}
	if occupation.Status != ledger.ReservationStatusPending {
		t.Errorf("Status = %s, want pending", occupation.Status)
	}
	if occupation.Reservation == nil {
		t.Fatal("Reservation record should be set")
	}
	if occupation.Game != nil {
		t.Error("Game record should not be set on a reservation")
	}
}

func TestRequestOccupation_OverlapRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60)); err != nil {
		t.Fatalf("first occupation: %v", err)
	}

	// Any overlap with the held slot is rejected
	overlaps := []struct {
		name     string
		startMin int64
		endMin   int64
	}{
		{"identical", 18 * 60, 19 * 60},
		{"straddles start", 17*60 + 30, 18*60 + 30},
		{"straddles end", 18*60 + 30, 19*60 + 30},
		{"contained", 18*60 + 15, 18*60 + 45},
		{"containing", 17 * 60, 20 * 60},
	}
	for _, tc := range overlaps {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, tc.startMin, tc.endMin))
			var conflictErr ledger.ConflictError
			if !errors.As(err, &conflictErr) {
				t.Fatalf("expected ConflictError, got %v", err)
			}
			if conflictErr.Kind != ledger.KindReservation {
				t.Errorf("conflict Kind = %s, want reservation", conflictErr.Kind)
			}
		})
	}
}

func TestRequestOccupation_AdjacentSlotsAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60)); err != nil {
		t.Fatalf("first occupation: %v", err)
	}

	// Half-open intervals: back-to-back bookings share a boundary minute
	if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 19*60, 20*60)); err != nil {
		t.Fatalf("adjacent after: %v", err)
	}
	if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 17*60, 18*60)); err != nil {
		t.Fatalf("adjacent before: %v", err)
	}
}

func TestRequestOccupation_CrossKindConflict(t *testing.T) {
	t.Run("game blocks reservation", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		if _, err := f.ledger.RequestOccupation(ctx, gameRequest(f, 18*60, 19*60, 10)); err != nil {
			t.Fatalf("create game: %v", err)
		}

		_, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60+30, 19*60+30))
		var conflictErr ledger.ConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if conflictErr.Kind != ledger.KindGame {
			t.Errorf("conflict Kind = %s, want game", conflictErr.Kind)
		}
	})

	t.Run("reservation blocks game", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60)); err != nil {
			t.Fatalf("create reservation: %v", err)
		}

		_, err := f.ledger.RequestOccupation(ctx, gameRequest(f, 18*60+30, 19*60+30, 10))
		var conflictErr ledger.ConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if conflictErr.Kind != ledger.KindReservation {
			t.Errorf("conflict Kind = %s, want reservation", conflictErr.Kind)
		}
	})
}

func TestRequestOccupation_ReleasedSlotsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	occupation, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60))
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	affected, err := f.db.Queries.CancelReservation(ctx, db.CancelReservationParams{
		ID:     occupation.ID,
		UserID: f.userID,
	})
	if err != nil || affected != 1 {
		t.Fatalf("cancel reservation: affected=%d err=%v", affected, err)
	}

	// Cancelled reservations no longer hold the slot
	if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60)); err != nil {
		t.Fatalf("rebook cancelled slot: %v", err)
	}
}

func TestRequestOccupation_DurationBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		startMin int64
		endMin   int64
		wantErr  bool
	}{
		{"below minimum", 10 * 60, 10*60 + 29, true},
		{"exactly minimum", 10 * 60, 10*60 + 30, false},
		{"exactly maximum", 12 * 60, 20 * 60, false},
		{"above maximum", 12 * 60, 20*60 + 1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Separate field per case so slots never collide
			fieldID := testutil.SeedField(t, f.db, f.userID, "Cancha "+tc.name, 5000)
			req := reservationRequest(f, tc.startMin, tc.endMin)
			req.FieldID = fieldID

			_, err := f.ledger.RequestOccupation(ctx, req)
			var validationErr ledger.ValidationError
			if tc.wantErr {
				if !errors.As(err, &validationErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequestOccupation_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	price := int64(200000)
	tests := []struct {
		name      string
		mutate    func(*ledger.OccupationRequest)
		wantField string
	}{
		{"missing field", func(r *ledger.OccupationRequest) { r.FieldID = 0 }, "field_id"},
		{"missing requester", func(r *ledger.OccupationRequest) { r.RequesterID = 0 }, "requester_id"},
		{"bad kind", func(r *ledger.OccupationRequest) { r.Kind = "tournament" }, "kind"},
		{"negative start", func(r *ledger.OccupationRequest) { r.StartMin = -1 }, "start_time"},
		{"end past midnight", func(r *ledger.OccupationRequest) { r.EndMin = 24*60 + 1 }, "end_time"},
		{"end before start", func(r *ledger.OccupationRequest) { r.StartMin = 19 * 60; r.EndMin = 18 * 60 }, "end_time"},
		{"bad date", func(r *ledger.OccupationRequest) { r.Date = "15/06/2030" }, "date"},
		{"past start", func(r *ledger.OccupationRequest) { r.Date = "2030-05-01" }, "start_time"},
		{"game without details", func(r *ledger.OccupationRequest) { r.Kind = ledger.KindGame }, "game"},
		{"game without title", func(r *ledger.OccupationRequest) {
			r.Kind = ledger.KindGame
			r.Game = &ledger.GameDetails{MaxPlayers: 10}
		}, "title"},
		{"too few players", func(r *ledger.OccupationRequest) {
			r.Kind = ledger.KindGame
			r.Game = &ledger.GameDetails{Title: "Mejenga", MaxPlayers: 1}
		}, "max_players"},
		{"too many players", func(r *ledger.OccupationRequest) {
			r.Kind = ledger.KindGame
			r.Game = &ledger.GameDetails{Title: "Mejenga", MaxPlayers: 51}
		}, "max_players"},
		{"price out of range", func(r *ledger.OccupationRequest) {
			r.Kind = ledger.KindGame
			r.Game = &ledger.GameDetails{Title: "Mejenga", MaxPlayers: 10, PricePerPlayer: &price}
		}, "price_per_player"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := reservationRequest(f, 18*60, 19*60)
			tc.mutate(&req)

			_, err := f.ledger.RequestOccupation(ctx, req)
			var validationErr ledger.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tc.wantField {
				t.Errorf("Field = %s, want %s", validationErr.Field, tc.wantField)
			}
		})
	}
}

func TestRequestOccupation_FieldNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := reservationRequest(f, 18*60, 19*60)
	req.FieldID = 9999
	if _, err := f.ledger.RequestOccupation(ctx, req); !errors.Is(err, ledger.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}

	// Deactivated fields are treated as missing
	if _, err := f.db.ExecContext(ctx, `UPDATE fields SET is_active = 0 WHERE id = ?`, f.fieldID); err != nil {
		t.Fatalf("deactivate field: %v", err)
	}
	if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60)); !errors.Is(err, ledger.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound for inactive field, got %v", err)
	}
}

func TestRequestOccupation_ZeroRateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.db.ExecContext(ctx, `UPDATE fields SET hourly_rate = 0 WHERE id = ?`, f.fieldID); err != nil {
		t.Fatalf("zero rate: %v", err)
	}
	if _, err := f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAdmitParticipant_CapacityAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	occupation, err := f.ledger.RequestOccupation(ctx, gameRequest(f, 18*60, 19*60, 2))
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	gameID := occupation.ID

	alice := testutil.SeedUser(t, f.db, "Alice", "alice@example.com", "")
	bruno := testutil.SeedUser(t, f.db, "Bruno", "bruno@example.com", "")
	carmen := testutil.SeedUser(t, f.db, "Carmen", "carmen@example.com", "")

	record, err := f.ledger.AdmitParticipant(ctx, gameID, alice)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if record.GameStatus != ledger.GameStatusOpen {
		t.Errorf("after first join status = %s, want open", record.GameStatus)
	}
	if record.SpotsRemaining != 1 {
		t.Errorf("after first join spots = %d, want 1", record.SpotsRemaining)
	}

	// Duplicate join is rejected without consuming a spot
	if _, err := f.ledger.AdmitParticipant(ctx, gameID, alice); !errors.Is(err, ledger.ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}

	record, err = f.ledger.AdmitParticipant(ctx, gameID, bruno)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if record.GameStatus != ledger.GameStatusFull {
		t.Errorf("after last spot status = %s, want full", record.GameStatus)
	}
	if record.SpotsRemaining != 0 {
		t.Errorf("after last spot spots = %d, want 0", record.SpotsRemaining)
	}

	// The full flip closes the game to further joins
	if _, err := f.ledger.AdmitParticipant(ctx, gameID, carmen); !errors.Is(err, ledger.ErrGameNotOpen) {
		t.Fatalf("expected ErrGameNotOpen after full flip, got %v", err)
	}
}

func TestAdmitParticipant_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	occupation, err := f.ledger.RequestOccupation(ctx, gameRequest(f, 18*60, 19*60, 10))
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	gameID := occupation.ID
	joiner := testutil.SeedUser(t, f.db, "Alice", "alice@example.com", "")

	if _, err := f.ledger.AdmitParticipant(ctx, 9999, joiner); !errors.Is(err, ledger.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}

	if _, err := f.db.ExecContext(ctx, `UPDATE games SET status = 'cancelled' WHERE id = ?`, gameID); err != nil {
		t.Fatalf("cancel game: %v", err)
	}
	if _, err := f.ledger.AdmitParticipant(ctx, gameID, joiner); !errors.Is(err, ledger.ErrGameNotOpen) {
		t.Fatalf("expected ErrGameNotOpen, got %v", err)
	}

	if _, err := f.db.ExecContext(ctx, `UPDATE games SET status = 'open' WHERE id = ?`, gameID); err != nil {
		t.Fatalf("reopen game: %v", err)
	}

	// A clock past the game start rejects the join even while status is open
	lateLedger, err := ledger.New(f.db, ledger.WithClock(fixedClock{
		now: time.Date(2030, 6, 15, 18, 0, 0, 0, time.Local),
	}))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if _, err := lateLedger.AdmitParticipant(ctx, gameID, joiner); !errors.Is(err, ledger.ErrGameExpiredOrStarted) {
		t.Fatalf("expected ErrGameExpiredOrStarted, got %v", err)
	}
}

func TestRequestOccupation_ConcurrentOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.RequestOccupation(ctx, reservationRequest(f, 18*60, 19*60))
		}(i)
	}
	wg.Wait()

	var admitted, conflicted int
	for _, err := range errs {
		var conflictErr ledger.ConflictError
		switch {
		case err == nil:
			admitted++
		case errors.As(err, &conflictErr):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted)
	}
	if conflicted != attempts-1 {
		t.Errorf("conflicted = %d, want %d", conflicted, attempts-1)
	}
}

func TestAdmitParticipant_ConcurrentLastSpot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	occupation, err := f.ledger.RequestOccupation(ctx, gameRequest(f, 18*60, 19*60, 2))
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	gameID := occupation.ID

	first := testutil.SeedUser(t, f.db, "First", "first@example.com", "")
	if _, err := f.ledger.AdmitParticipant(ctx, gameID, first); err != nil {
		t.Fatalf("seat first player: %v", err)
	}

	// One spot left, several racers
	const racers = 6
	userIDs := make([]int64, racers)
	for i := range userIDs {
		userIDs[i] = testutil.SeedUser(t, f.db, "Racer", "racer"+string(rune('a'+i))+"@example.com", "")
	}

	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = f.ledger.AdmitParticipant(ctx, gameID, userID)
		}(i, userID)
	}
	wg.Wait()

	var admitted int
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, ledger.ErrGameFull), errors.Is(err, ledger.ErrGameNotOpen):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted)
	}

	game, err := f.db.Queries.GetGameByID(ctx, gameID)
	if err != nil {
		t.Fatalf("reload game: %v", err)
	}
	if game.CurrentPlayers != 2 {
		t.Errorf("CurrentPlayers = %d, want 2", game.CurrentPlayers)
	}
	if game.Status != ledger.GameStatusFull {
		t.Errorf("Status = %s, want full", game.Status)
	}
}
