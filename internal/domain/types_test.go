package domain

import (
	"errors"
	"testing"
)

func TestSignalString(t *testing.T) {
	cases := map[Signal]string{
		SignalBuy:  "buy",
		SignalSell: "sell",
		SignalHold: "hold",
		Signal(3):  "signal(3)",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Signal(%d).String() = %q, want %q", int8(s), got, want)
		}
	}
	if Signal(2).Valid() {
		t.Error("Signal(2).Valid() = true, want false")
	}
}

func TestValidateBars(t *testing.T) {
	good := []Bar{
		{Date: 20240101, Close: 10},
		{Date: 20240102, Close: 11},
	}
	if err := ValidateBars(good); err != nil {
		t.Fatalf("ValidateBars(good) returned error: %v", err)
	}

	if err := ValidateBars(nil); !errors.Is(err, ErrEmptyBars) {
		t.Errorf("ValidateBars(nil) = %v, want ErrEmptyBars", err)
	}

	unsorted := []Bar{{Date: 20240102, Close: 10}, {Date: 20240101, Close: 10}}
	err := ValidateBars(unsorted)
	if !errors.Is(err, ErrUnsortedBars) {
		t.Errorf("ValidateBars(unsorted) = %v, want ErrUnsortedBars", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ValidateBars(unsorted) = %v, want it to wrap ErrInvalidInput", err)
	}

	dup := []Bar{{Date: 20240101, Close: 10}, {Date: 20240101, Close: 10}}
	if err := ValidateBars(dup); !errors.Is(err, ErrUnsortedBars) {
		t.Errorf("ValidateBars(duplicate dates) = %v, want ErrUnsortedBars", err)
	}

	zero := []Bar{{Date: 20240101, Close: 0}}
	if err := ValidateBars(zero); !errors.Is(err, ErrNonPositivePrice) {
		t.Errorf("ValidateBars(zero close) = %v, want ErrNonPositivePrice", err)
	}
}

func TestValidateSignals(t *testing.T) {
	bars := []Bar{{Date: 20240101, Close: 10}, {Date: 20240102, Close: 11}}

	if err := ValidateSignals(bars, []Signal{SignalBuy, SignalHold}); err != nil {
		t.Fatalf("ValidateSignals returned error: %v", err)
	}
	if err := ValidateSignals(bars, []Signal{SignalBuy}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("ValidateSignals(short) = %v, want ErrLengthMismatch", err)
	}
	if err := ValidateSignals(bars, []Signal{SignalBuy, Signal(5)}); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("ValidateSignals(out of range) = %v, want ErrInvalidSignal", err)
	}
}

func TestCloses(t *testing.T) {
	bars := []Bar{{Close: 1.5}, {Close: 2.5}}
	got := Closes(bars)
	if len(got) != 2 || got[0] != 1.5 || got[1] != 2.5 {
		t.Errorf("Closes = %v, want [1.5 2.5]", got)
	}
}

func TestSignalText(t *testing.T) {
	for _, s := range []Signal{SignalBuy, SignalSell, SignalHold} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", s, err)
		}
		var back Signal
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != s {
			t.Errorf("round trip = %v, want %v", back, s)
		}
	}
	if _, err := Signal(5).MarshalText(); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("MarshalText(5) err = %v, want ErrInvalidSignal", err)
	}
	if _, err := ParseSignal("short"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseSignal(short) err = %v, want ErrInvalidInput", err)
	}
}
