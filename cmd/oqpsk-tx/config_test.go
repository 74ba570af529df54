package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/uu-core/oqpsk/pkg/nodefile"
	"github.com/uu-core/oqpsk/pkg/phy"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.repeatCount != 10 || cfg.rounds != 0 || cfg.interval != time.Second || cfg.startDelay != 0 {
		t.Errorf("General = %d, %d, %v, %v", cfg.repeatCount, cfg.rounds, cfg.interval, cfg.startDelay)
	}
	if cfg.seq != 1 {
		t.Errorf("seq = %d, want 1", cfg.seq)
	}
	if cfg.src.PAN != 0x2222 || cfg.src.Addr != 0x1234 {
		t.Errorf("src = %v", cfg.src)
	}
	if cfg.dst.PAN != 0x4444 || cfg.dst.Addr != 0xABCD {
		t.Errorf("dst = %v", cfg.dst)
	}
	if !bytes.Equal(cfg.payload, []byte{0x01, 0x02, 0x0A, 0x0B}) {
		t.Errorf("payload = % X", cfg.payload)
	}
	if cfg.repeat != phy.DefaultRepeatFactor || cfg.maxWords != defaultMaxWords || cfg.maxPayload != defaultMaxPayload {
		t.Errorf("Radio = %d, %d, %d", cfg.repeat, cfg.maxWords, cfg.maxPayload)
	}
	if cfg.modemType != "dummy" || cfg.cacheEnabled || cfg.logLevel != "INFO" {
		t.Errorf("modem %q, cache %v, log %q", cfg.modemType, cfg.cacheEnabled, cfg.logLevel)
	}
	if cfg.message != nil || cfg.eventLogger != nil {
		t.Errorf("message = % X, eventLogger = %v", cfg.message, cfg.eventLogger)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("testdata/valid.ini")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.repeatCount != 3 || cfg.rounds != 2 || cfg.interval != 250*time.Millisecond || cfg.startDelay != 5*time.Second {
		t.Errorf("General = %d, %d, %v, %v", cfg.repeatCount, cfg.rounds, cfg.interval, cfg.startDelay)
	}
	if len(cfg.message) != 29 || cfg.message[4] != 0xA7 {
		t.Errorf("message = % X", cfg.message)
	}
	if cfg.seq != 11 || cfg.maxPayload != 8 {
		t.Errorf("seq = %d, maxPayload = %d", cfg.seq, cfg.maxPayload)
	}
	wantDst := nodefile.Node{Name: "gateway", PAN: 0x4444, Addr: 0xABCD}
	if cfg.dst != wantDst {
		t.Errorf("dst = %v, want %v", cfg.dst, wantDst)
	}
	if cfg.repeat != 2 || cfg.maxWords != 2000 || cfg.clockHz != 125e6 {
		t.Errorf("Radio = %d, %d, %v", cfg.repeat, cfg.maxWords, cfg.clockHz)
	}
	if cfg.modemType != "serial" || cfg.modemCfg.Key("Port").String() != "/dev/ttyACM0" {
		t.Errorf("modem = %q on %q", cfg.modemType, cfg.modemCfg.Key("Port").String())
	}
	if !cfg.cacheEnabled || cfg.cacheDir != "/tmp/oqpsk-cache" || cfg.logLevel != "DEBUG" {
		t.Errorf("cache %v %q, log %q", cfg.cacheEnabled, cfg.cacheDir, cfg.logLevel)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig("testdata/bad.ini")
	if err == nil {
		t.Fatal("loadConfig() error = nil")
	}
	for _, want := range []string{
		"RepeatCount 0",
		"soon",
		"Sequence 300",
		"odd",
		"repeat factor",
		"bad Modem Type: radio",
		"Log Level",
	} {
		if !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(want)) {
			t.Errorf("loadConfig() error %q does not mention %q", err, want)
		}
	}

	if _, err := loadConfig("testdata/missing.ini"); err == nil {
		t.Error("loadConfig(missing) error = nil")
	}
}

func TestEventLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newEventLogger(&buf)
	l.Info("", "type", "Transmission", "seq", 7)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("event is not JSON: %v: %s", err, buf.String())
	}
	if _, ok := got["level"]; ok {
		t.Errorf("event has a level: %v", got)
	}
	if _, ok := got["msg"]; ok {
		t.Errorf("event has a msg: %v", got)
	}
	if got["type"] != "Transmission" || got["seq"] != float64(7) {
		t.Errorf("event = %v", got)
	}
	if _, ok := got["time"]; !ok {
		t.Errorf("event has no time: %v", got)
	}
}
