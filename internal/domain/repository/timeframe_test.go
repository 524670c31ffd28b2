package repository

import "testing"

func TestDurationKnownTimeframes(t *testing.T) {
	cases := map[Timeframe]int64{
		TF1m:  60_000,
		TF5m:  300_000,
		TF15m: 900_000,
		TF30m: 1_800_000,
		TF1h:  3_600_000,
		TF4h:  14_400_000,
		TF1d:  86_400_000,
	}
	for tf, want := range cases {
		got, err := Duration(tf)
		if err != nil {
			t.Fatalf("Duration(%s): %v", tf, err)
		}
		if got != want {
			t.Fatalf("Duration(%s) = %d, want %d", tf, got, want)
		}
	}
}

func TestDurationRejectsUnknown(t *testing.T) {
	for _, tf := range []Timeframe{"", "2m", "1w", "60"} {
		if _, err := Duration(tf); err == nil {
			t.Fatalf("Duration(%q): expected error", tf)
		}
		if IsValidTimeframe(tf) {
			t.Fatalf("IsValidTimeframe(%q): expected false", tf)
		}
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	if got := NormalizeTimeframe(""); got != TF1m {
		t.Fatalf("empty: got %s", got)
	}
	if got := NormalizeTimeframe("5m"); got != TF5m {
		t.Fatalf("5m: got %s", got)
	}
	if got := NormalizeTimeframe("bogus"); got != TF1m {
		t.Fatalf("bogus: got %s", got)
	}
}

func TestAllTimeframesOrderedAndCopied(t *testing.T) {
	all := AllTimeframes()
	if len(all) != 7 {
		t.Fatalf("expected 7 timeframes, got %d", len(all))
	}
	if all[0] != TF1m || all[len(all)-1] != TF1d {
		t.Fatalf("unexpected ordering: %v", all)
	}
	all[0] = "mutated"
	if AllTimeframes()[0] != TF1m {
		t.Fatal("AllTimeframes must return a copy")
	}
}
