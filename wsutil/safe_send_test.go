package wsutil

import "testing"

func TestSafeSend(t *testing.T) {
	ch := make(chan []byte, 1)
	SafeSend(ch, []byte("a"))
	SafeSend(ch, []byte("dropped"))
	if got := string(<-ch); got != "a" {
		t.Errorf("expected first message, got %q", got)
	}

	close(ch)
	SafeSend(ch, []byte("late")) // must not panic
}
