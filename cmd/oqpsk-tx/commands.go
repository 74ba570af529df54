package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/uu-core/oqpsk/pkg/capture"
	"github.com/uu-core/oqpsk/pkg/phy"
	"github.com/uu-core/oqpsk/pkg/pio"
	"github.com/uu-core/oqpsk/pkg/protocol"
	"github.com/uu-core/oqpsk/pkg/wordcache"
)

func buildFrame(cfg config, seq byte, payload []byte) (*protocol.Frame, error) {
	b, err := protocol.NewBuilder(cfg.maxPayload)
	if err != nil {
		return nil, err
	}
	return b.Build(seq, cfg.src.PAN, cfg.src.Addr, cfg.dst.PAN, cfg.dst.Addr, payload)
}

// input returns the bytes named on the command line, or the configured frame.
func input(c *cli.Context, cfg config) ([]byte, error) {
	if c.NArg() > 0 {
		return protocol.ParseHex(strings.Join(c.Args(), ""))
	}
	f, err := buildFrame(cfg, cfg.seq, cfg.payload)
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}
	return f.Bytes(), nil
}

func repeatFactor(c *cli.Context, cfg config) int {
	if r := c.Int("repeat"); r != 0 {
		return r
	}
	return cfg.repeat
}

func openCache(cfg config) (*wordcache.Cache, error) {
	if !cfg.cacheEnabled {
		return nil, nil
	}
	return wordcache.Open(cfg.cacheDir)
}

func frameCommand(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return fmt.Errorf("bad configuration: %w", err)
	}
	seq := cfg.seq
	if s := c.Int("seq"); s >= 0 {
		if s > 0xFF {
			return fmt.Errorf("sequence number %d out of range (0 to 255)", s)
		}
		seq = byte(s)
	}
	payload := cfg.payload
	if c.IsSet("payload") {
		payload, err = protocol.ParseHex(c.String("payload"))
		if err != nil {
			return err
		}
	}
	f, err := buildFrame(cfg, seq, payload)
	if err != nil {
		return err
	}
	log.Printf("[DEBUG] frame: %v", f)
	fmt.Fprintf(c.App.Writer, "% 02X\n", f.Bytes())
	return nil
}

func encodeCommand(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return fmt.Errorf("bad configuration: %w", err)
	}
	data, err := input(c, cfg)
	if err != nil {
		return err
	}
	repeat := repeatFactor(c, cfg)
	cache, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("open word cache: %w", err)
	}
	entry, err := cache.Words(data, repeat, cfg.maxWords)
	if err != nil {
		return err
	}
	stats, err := phy.Measure(data, repeat)
	if err != nil {
		return err
	}
	log.Printf("[INFO] encoded %s", stats)

	out := c.App.Writer
	if name := c.String("out"); name != "" {
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeWords(out, entry.Words); err != nil {
		return err
	}

	if name := c.String("capture"); name != "" {
		md := &capture.Metadata{
			Repeat:        repeat,
			Bytes:         len(data),
			Words:         len(entry.Words),
			CyclesPerChip: phy.CyclesPerChip,
			ClockHz:       cfg.clockHz,
		}
		if err := writeCapture(name, md, data, repeat); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		log.Printf("[INFO] wrote %d pulses to %s", stats.Runs, name)
	}
	return nil
}

func writeWords(w io.Writer, words []phy.Word) error {
	for _, word := range words {
		if _, err := fmt.Fprintf(w, "%08X\n", word); err != nil {
			return err
		}
	}
	return nil
}

func writeCapture(name string, md *capture.Metadata, data []byte, repeat int) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	w := capture.NewWriter(f, md)
	_, err = w.WriteRuns(phy.Normalize(phy.Runs(phy.EncodeChips(data, repeat))))
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func verifyCommand(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return fmt.Errorf("bad configuration: %w", err)
	}
	data, err := input(c, cfg)
	if err != nil {
		return err
	}
	repeat := repeatFactor(c, cfg)
	seq, err := phy.Convert(data, repeat)
	if err != nil {
		return err
	}
	words, err := phy.Collect(seq, cfg.maxWords)
	if err != nil {
		return err
	}
	stats, err := phy.Measure(data, repeat)
	if err != nil {
		return err
	}
	log.Printf("[DEBUG] verifying with program:\n%v", pio.Backscatter)
	t, err := pio.Verify(words, stats.Bits, phy.Normalize(phy.Runs(phy.EncodeChips(data, repeat))))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "OK: %d words, %d runs, %d cycles\n", len(words), len(t.Runs()), t.Cycles)
	if cfg.clockHz > 0 {
		airTime := time.Duration(float64(t.Cycles) / cfg.clockHz * float64(time.Second))
		fmt.Fprintf(c.App.Writer, "air time at %.0f Hz: %v\n", cfg.clockHz, airTime)
	}
	return nil
}
