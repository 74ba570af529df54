package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/uu-core/oqpsk"
	"github.com/uu-core/oqpsk/pkg/nodefile"
	"github.com/uu-core/oqpsk/pkg/protocol"
	"github.com/uu-core/oqpsk/pkg/wordcache"
)

// Transmitter alternates between the configured frame, rebuilt with the next
// sequence number each round, and the optional raw message. Each is sent
// RepeatCount times with Interval between sends.
type Transmitter struct {
	modem       oqpsk.Modem
	out         *os.File
	builder     *protocol.Builder
	cache       *wordcache.Cache
	eventLogger *slog.Logger

	seq     byte
	src     nodefile.Node
	dst     nodefile.Node
	payload []byte
	message []byte

	repeat      int
	maxWords    int
	repeatCount int
	rounds      int
	interval    time.Duration
	startDelay  time.Duration
}

func NewTransmitter(cfg config, modem oqpsk.Modem, out *os.File, cache *wordcache.Cache) (*Transmitter, error) {
	b, err := protocol.NewBuilder(cfg.maxPayload)
	if err != nil {
		return nil, err
	}
	return &Transmitter{
		modem:       modem,
		out:         out,
		builder:     b,
		cache:       cache,
		eventLogger: cfg.eventLogger,
		seq:         cfg.seq,
		src:         cfg.src,
		dst:         cfg.dst,
		payload:     cfg.payload,
		message:     cfg.message,
		repeat:      cfg.repeat,
		maxWords:    cfg.maxWords,
		repeatCount: cfg.repeatCount,
		rounds:      cfg.rounds,
		interval:    cfg.interval,
		startDelay:  cfg.startDelay,
	}, nil
}

// nextFrame builds the frame with the current sequence number and advances
// it.
func (t *Transmitter) nextFrame() (*protocol.Frame, error) {
	f, err := t.builder.Build(t.seq, t.src.PAN, t.src.Addr, t.dst.PAN, t.dst.Addr, t.payload)
	if err != nil {
		return nil, err
	}
	t.seq++
	return f, nil
}

// Run transmits until done is closed, or for the configured number of
// rounds.
func (t *Transmitter) Run(done <-chan struct{}) error {
	if !wait(done, t.startDelay) {
		return nil
	}
	for round := 0; t.rounds == 0 || round < t.rounds; round++ {
		f, err := t.nextFrame()
		if err != nil {
			return fmt.Errorf("build frame: %w", err)
		}
		log.Printf("[DEBUG] round %d frame: %v", round, f)
		more, err := t.send("frame", int(f.Header.Seq), f.Bytes(), done)
		if err != nil || !more {
			return err
		}
		if len(t.message) == 0 {
			continue
		}
		more, err = t.send("message", -1, t.message, done)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

// send transmits data RepeatCount times. It reports false when done was
// closed while waiting between sends.
func (t *Transmitter) send(kind string, seq int, data []byte, done <-chan struct{}) (bool, error) {
	entry, err := t.cache.Words(data, t.repeat, t.maxWords)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", kind, err)
	}
	log.Printf("[INFO] sending %s: %d bytes, %d words, %d times", kind, len(data), len(entry.Words), t.repeatCount)
	tx := oqpsk.PrepareWords(t.modem, entry.Words)
	if err := tx.Begin(); err != nil {
		return false, err
	}
	for i := range t.repeatCount {
		if _, err := tx.Send(); err != nil {
			return false, fmt.Errorf("send %s: %w", kind, err)
		}
		if t.eventLogger != nil {
			attrs := []any{
				"type", "Transmission",
				"kind", kind,
				"bytes", len(data),
				"words", len(entry.Words),
				"repeat", t.repeat,
				"count", i + 1,
			}
			if seq >= 0 {
				attrs = append(attrs, "seq", seq)
			}
			t.eventLogger.Info("", attrs...)
		}
		if !wait(done, t.interval) {
			return false, nil
		}
	}
	return true, nil
}

// wait sleeps for d and reports false if done was closed first.
func wait(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-done:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}

func (t *Transmitter) Close() {
	log.Print("[DEBUG] Transmitter.Close()")
	if t.modem != nil {
		err := t.modem.Close()
		if err != nil {
			log.Printf("[ERROR] modem close: %v", err)
		}
	}
	if t.out != nil && t.out != os.Stdout {
		t.out.Close()
	}
}

// openModem connects the configured modem. For the dummy modem it also
// returns the file the words go to.
func openModem(cfg config) (oqpsk.Modem, *os.File, error) {
	switch cfg.modemType {
	case "serial":
		m, err := oqpsk.NewSerialModem(cfg.modemCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating serial modem: %w", err)
		}
		log.Printf("[INFO] Connected to serial modem on %s", cfg.modemCfg.Key("Port").String())
		return m, nil, nil
	default:
		out := os.Stdout
		if name := cfg.modemCfg.Key("Output").String(); name != "" {
			var err error
			out, err = os.Create(name)
			if err != nil {
				return nil, nil, err
			}
		}
		m, err := oqpsk.NewDummyModemFromConfig(out, cfg.modemCfg)
		if err != nil {
			if out != os.Stdout {
				out.Close()
			}
			return nil, nil, fmt.Errorf("error creating dummy modem: %w", err)
		}
		return m, out, nil
	}
}

func transmitCommand(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return fmt.Errorf("bad configuration: %w", err)
	}
	cache, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("open word cache: %w", err)
	}
	modem, out, err := openModem(cfg)
	if err != nil {
		return err
	}
	t, err := NewTransmitter(cfg, modem, out, cache)
	if err != nil {
		modem.Close()
		return err
	}
	defer t.Close()

	signalChan := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Print("[DEBUG] Received an interrupt, stopping...")
		close(done)
	}()
	return t.Run(done)
}
