package replay

import "testing"

func TestSenderProducesMonotonicNonces(t *testing.T) {
	var s Sender
	for i := uint64(0); i < 5; i++ {
		n, err := s.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if n != i {
			t.Fatalf("expected nonce %d, got %d", i, n)
		}
	}
}

func TestSenderRefusesNearOverflow(t *testing.T) {
	s := Sender{next: ^uint64(0) - OverflowMargin}
	if _, err := s.Next(); err != ErrNonceExhausted {
		t.Fatalf("expected ErrNonceExhausted, got %v", err)
	}
}

func TestWindowAcceptsInOrderSequence(t *testing.T) {
	var w Window
	for i := uint64(0); i < 10; i++ {
		if err := w.Accept(i); err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
	}
}

func TestWindowRejectsReplay(t *testing.T) {
	var w Window
	if err := w.Accept(5); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := w.Accept(5); err != ErrReplay {
		t.Fatalf("expected ErrReplay, got %v", err)
	}
}

func TestWindowAcceptsOutOfOrderWithinWindow(t *testing.T) {
	var w Window
	if err := w.Accept(10); err != nil {
		t.Fatalf("accept 10: %v", err)
	}
	if err := w.Accept(8); err != nil {
		t.Fatalf("expected out-of-order 8 within window to be accepted: %v", err)
	}
	if err := w.Accept(8); err != ErrReplay {
		t.Fatalf("expected ErrReplay for redelivery of 8, got %v", err)
	}
}

func TestWindowRejectsTooOld(t *testing.T) {
	var w Window
	if err := w.Accept(100); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := w.Accept(100 - WindowSize); err != ErrTooOld {
		t.Fatalf("expected ErrTooOld, got %v", err)
	}
}

func TestWindowSlidesHighWaterMark(t *testing.T) {
	var w Window
	_ = w.Accept(0)
	_ = w.Accept(200)
	if w.High() != 200 {
		t.Fatalf("expected high water mark 200, got %d", w.High())
	}
	// Nonce 0 is now far outside the window.
	if err := w.Accept(0); err != ErrTooOld {
		t.Fatalf("expected ErrTooOld after window slid, got %v", err)
	}
}
