package oqpsk

import (
	"fmt"
	"iter"
	"log"
	"slices"

	"github.com/uu-core/oqpsk/pkg/phy"
)

// Transmission sends one payload, once or many times, through a modem.
//
// Prepare does all validation and builds the word sequence lazily. Begin
// fills the FIFO while it has room and then starts the modem, so the
// peripheral never sees an empty FIFO at the start of the first frame. Send
// writes the rest; later calls send the whole payload again.
type Transmission struct {
	modem Modem
	words iter.Seq[phy.Word]

	started bool
	first   bool // the prefilled pass is not finished
	next    func() (phy.Word, bool)
	stop    func()
	sent    int
}

func Prepare(m Modem, data []byte, repeat int) (*Transmission, error) {
	words, err := phy.Convert(slices.Clone(data), repeat)
	if err != nil {
		return nil, fmt.Errorf("prepare transmission: %w", err)
	}
	return &Transmission{modem: m, words: words}, nil
}

// PrepareWords wraps an already materialized word stream.
func PrepareWords(m Modem, words []phy.Word) *Transmission {
	return &Transmission{modem: m, words: slices.Values(slices.Clone(words))}
}

func (t *Transmission) Begin() error {
	if t.started {
		return nil
	}
	t.next, t.stop = iter.Pull(t.words)
	n := 0
	for {
		full, err := t.modem.Full()
		if err != nil {
			t.release()
			return fmt.Errorf("prefill: %w", err)
		}
		if full {
			break
		}
		w, ok := t.next()
		if !ok {
			t.release()
			break
		}
		if err := t.modem.Write(w); err != nil {
			t.release()
			return fmt.Errorf("prefill word %d: %w", n, err)
		}
		n++
	}
	if err := flush(t.modem); err != nil {
		t.release()
		return fmt.Errorf("prefill: %w", err)
	}
	log.Printf("[DEBUG] prefilled %d words", n)
	if err := t.modem.Start(); err != nil {
		t.release()
		return fmt.Errorf("start modem: %w", err)
	}
	t.started, t.first = true, true
	t.sent = n
	return nil
}

// Send writes the remaining words of the first pass, or the whole stream on
// later calls, and returns how many words it wrote.
func (t *Transmission) Send() (int, error) {
	if !t.started {
		return 0, ErrNotStarted
	}
	words := t.words
	if t.first {
		t.first = false
		defer t.release()
		next := t.next
		words = func(yield func(phy.Word) bool) {
			for next != nil {
				w, ok := next()
				if !ok || !yield(w) {
					return
				}
			}
		}
	}
	n, err := Drain(t.modem, words)
	t.sent += n
	return n, err
}

// Sent is the number of words written so far, prefill included.
func (t *Transmission) Sent() int { return t.sent }

func (t *Transmission) release() {
	if t.stop != nil {
		t.stop()
	}
	t.next, t.stop = nil, nil
}
