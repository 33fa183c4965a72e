package folio

import (
	"errors"
	"testing"

	"github.com/etnz/folio/date"
)

func TestDeplete(t *testing.T) {
	on := date.MustParse("2024-01-01")
	rows := []Transaction{
		{ID: "b", Seq: 2, Count: dec("4")},
		{ID: "a", Seq: 1, Count: dec("3")},
		{ID: "c", Seq: 3, Count: dec("5")},
	}

	changes, err := Deplete("AAPL", on, rows, dec("6"))
	if err != nil {
		t.Fatalf("Deplete() error = %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("Deplete() = %d changes, want 2", len(changes))
	}
	if changes[0].ID != "a" || !changes[0].Removed() {
		t.Errorf("changes[0] = %+v, want row a removed", changes[0])
	}
	if changes[1].ID != "b" || changes[1].Removed() || !changes[1].Remaining.Equal(dec("1")) {
		t.Errorf("changes[1] = %+v, want row b left with 1", changes[1])
	}
}

func TestDepleteExactLot(t *testing.T) {
	rows := []Transaction{{ID: "only", Seq: 1, Count: dec("6")}}
	changes, err := Deplete("AAPL", date.MustParse("2024-01-01"), rows, dec("6"))
	if err != nil {
		t.Fatalf("Deplete() error = %v", err)
	}
	if len(changes) != 1 || !changes[0].Removed() {
		t.Errorf("Deplete() = %+v, want the only row removed", changes)
	}
}

func TestDepleteShortfall(t *testing.T) {
	rows := []Transaction{{ID: "only", Seq: 1, Count: dec("10")}}
	_, err := Deplete("AAPL", date.MustParse("2024-01-01"), rows, dec("15"))

	var short InsufficientSharesError
	if !errors.As(err, &short) {
		t.Fatalf("Deplete() error = %v, want InsufficientSharesError", err)
	}
	if !short.Available.Equal(dec("10")) || !short.Requested.Equal(dec("15")) {
		t.Errorf("shortfall = %v available / %v requested, want 10 / 15", short.Available, short.Requested)
	}
	if want := "not enough AAPL shares purchased on 2024-01-01: 10 available, 15 requested"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
