package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gopkg.in/ini.v1"

	"github.com/uu-core/oqpsk/pkg/nodefile"
	"github.com/uu-core/oqpsk/pkg/phy"
	"github.com/uu-core/oqpsk/pkg/protocol"
)

const (
	defaultMaxWords   = 4000
	defaultMaxPayload = 16
)

type config struct {
	eventLogger *slog.Logger
	message     []byte
	repeatCount int
	rounds      int
	interval    time.Duration
	startDelay  time.Duration

	seq        byte
	src        nodefile.Node
	dst        nodefile.Node
	payload    []byte
	maxPayload int

	repeat   int
	maxWords int
	clockHz  float64

	modemType string
	modemCfg  *ini.Section

	cacheEnabled bool
	cacheDir     string

	logLevel string
	logPath  string
	logRoot  string
}

// loadConfig reads iniFile, or uses the defaults for every key when iniFile
// is empty. All problems found are returned joined.
func loadConfig(iniFile string) (config, error) {
	var cfg *ini.File
	var err error
	if iniFile == "" {
		cfg = ini.Empty()
	} else {
		log.Printf("[INFO] Loading settings from '%s'", iniFile)
		cfg, err = ini.Load(iniFile)
		if err != nil {
			return config{}, fmt.Errorf("fail to read config from %s: %w", iniFile, err)
		}
	}
	setDefault := func(section, key, value string) {
		if !cfg.Section(section).HasKey(key) {
			cfg.Section(section).Key(key).SetValue(value)
		}
	}
	setDefault("General", "RepeatCount", "10")
	setDefault("General", "Rounds", "0")
	setDefault("General", "Interval", "1s")
	setDefault("General", "StartDelay", "0s")
	setDefault("Frame", "Sequence", "1")
	setDefault("Frame", "Source", "0x2222:0x1234")
	setDefault("Frame", "Destination", "0x4444:0xABCD")
	setDefault("Frame", "Payload", "01020A0B")
	setDefault("Frame", "MaxPayload", fmt.Sprint(defaultMaxPayload))
	setDefault("Radio", "RepeatFactor", fmt.Sprint(phy.DefaultRepeatFactor))
	setDefault("Radio", "MaxWords", fmt.Sprint(defaultMaxWords))
	setDefault("Radio", "ClockHz", "0")
	setDefault("Modem", "Type", "dummy")
	setDefault("Cache", "Enabled", "false")
	setDefault("Log", "Level", "INFO")

	eventLog := cfg.Section("General").Key("EventLog").String()
	nodeFile := cfg.Section("General").Key("NodeFile").String()
	messageHex := cfg.Section("General").Key("Message").String()
	repeatCount, repeatCountErr := cfg.Section("General").Key("RepeatCount").Int()
	rounds, roundsErr := cfg.Section("General").Key("Rounds").Int()
	interval, intervalErr := cfg.Section("General").Key("Interval").Duration()
	startDelay, startDelayErr := cfg.Section("General").Key("StartDelay").Duration()

	seq, seqErr := cfg.Section("Frame").Key("Sequence").Uint()
	source := cfg.Section("Frame").Key("Source").String()
	destination := cfg.Section("Frame").Key("Destination").String()
	payloadHex := cfg.Section("Frame").Key("Payload").String()
	maxPayload, maxPayloadErr := cfg.Section("Frame").Key("MaxPayload").Int()

	repeat, repeatErr := cfg.Section("Radio").Key("RepeatFactor").Int()
	maxWords, maxWordsErr := cfg.Section("Radio").Key("MaxWords").Int()
	clockHz, clockHzErr := cfg.Section("Radio").Key("ClockHz").Float64()

	var modemTypeErr error
	modemType := cfg.Section("Modem").Key("Type").In("BAD", []string{"dummy", "serial"})
	if modemType == "BAD" {
		modemTypeErr = fmt.Errorf("bad Modem Type: %s", cfg.Section("Modem").Key("Type").String())
	}
	modemCfg := cfg.Section("Modem")

	cacheEnabled, cacheEnabledErr := cfg.Section("Cache").Key("Enabled").Bool()
	cacheDir := cfg.Section("Cache").Key("Dir").String()

	logLevel := cfg.Section("Log").Key("Level").String()
	logPath := cfg.Section("Log").Key("Path").String()
	logRoot := cfg.Section("Log").Key("Root").String()

	if repeatCountErr == nil && repeatCount < 1 {
		repeatCountErr = fmt.Errorf("configured RepeatCount %d must be at least 1", repeatCount)
	}
	if roundsErr == nil && rounds < 0 {
		roundsErr = fmt.Errorf("configured Rounds %d must not be negative", rounds)
	}
	if seqErr == nil && seq > 0xFF {
		seqErr = fmt.Errorf("configured Sequence %d out of range (0 to 255)", seq)
	}
	if repeatErr == nil {
		repeatErr = phy.CheckRepeatFactor(repeat)
	}
	if maxWordsErr == nil && maxWords < 1 {
		maxWordsErr = fmt.Errorf("configured MaxWords %d must be positive", maxWords)
	}
	var logLevelErr error
	if logLevel != "ERROR" && logLevel != "INFO" && logLevel != "DEBUG" {
		logLevelErr = fmt.Errorf("configured Log Level must be one of ERROR, INFO or DEBUG")
	}

	var nodes *nodefile.Nodefile
	var nodeFileErr error
	if nodeFile != "" {
		nodes, nodeFileErr = nodefile.NewNodefile(nodeFile)
	}
	src, srcErr := nodes.Lookup(source)
	dst, dstErr := nodes.Lookup(destination)

	payload, payloadErr := protocol.ParseHex(payloadHex)
	if payloadErr == nil && maxPayloadErr == nil && len(payload) > maxPayload {
		payloadErr = fmt.Errorf("configured Payload of %d bytes exceeds MaxPayload %d", len(payload), maxPayload)
	}
	var message []byte
	var messageErr error
	if messageHex != "" {
		message, messageErr = protocol.ParseHex(messageHex)
	}

	var eventLogFile *os.File
	var eventLogErr error
	var eventLogger *slog.Logger
	if eventLog != "" {
		eventLogFile, eventLogErr = os.OpenFile(eventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if eventLogFile != nil {
			eventLogger = newEventLogger(eventLogFile)
		}
	}

	err = errors.Join(
		repeatCountErr,
		roundsErr,
		intervalErr,
		startDelayErr,
		seqErr,
		maxPayloadErr,
		repeatErr,
		maxWordsErr,
		clockHzErr,
		modemTypeErr,
		cacheEnabledErr,
		logLevelErr,
		nodeFileErr,
		srcErr,
		dstErr,
		payloadErr,
		messageErr,
		eventLogErr,
	)

	return config{
		eventLogger:  eventLogger,
		message:      message,
		repeatCount:  repeatCount,
		rounds:       rounds,
		interval:     interval,
		startDelay:   startDelay,
		seq:          byte(seq),
		src:          src,
		dst:          dst,
		payload:      payload,
		maxPayload:   maxPayload,
		repeat:       repeat,
		maxWords:     maxWords,
		clockHz:      clockHz,
		modemType:    modemType,
		modemCfg:     modemCfg,
		cacheEnabled: cacheEnabled,
		cacheDir:     cacheDir,
		logLevel:     logLevel,
		logPath:      logPath,
		logRoot:      logRoot,
	}, err
}
