package main

import (
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/hashicorp/logutils"
	"github.com/urfave/cli"
)

var COMMANDS = []cli.Command{
	{
		Name:  "frame",
		Usage: "Build the configured 802.15.4 data frame and print its PHY bytes",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "seq",
				Value: -1,
				Usage: "Sequence number (default is Frame Sequence from the configuration)",
			},
			cli.StringFlag{
				Name:  "payload",
				Usage: "Payload as hex digits (default is Frame Payload from the configuration)",
			},
		},
		Action: frameCommand,
	},
	{
		Name:      "encode",
		Usage:     "Encode bytes into FIFO words for the backscatter program",
		ArgsUsage: "[hex bytes] (default is the configured frame)",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "repeat, r",
				Usage: "Repeat factor (default is Radio RepeatFactor from the configuration)",
			},
			cli.StringFlag{
				Name:  "out, o",
				Usage: "Write words to this file instead of stdout",
			},
			cli.StringFlag{
				Name:  "capture",
				Usage: "Also write the pulse train to this parquet file",
			},
		},
		Action: encodeCommand,
	},
	{
		Name:      "verify",
		Usage:     "Run the encoded words through a model of the backscatter program and compare the waveform",
		ArgsUsage: "[hex bytes] (default is the configured frame)",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "repeat, r",
				Usage: "Repeat factor (default is Radio RepeatFactor from the configuration)",
			},
		},
		Action: verifyCommand,
	},
	{
		Name:   "transmit",
		Usage:  "Send the configured frame and message through the modem until interrupted",
		Action: transmitCommand,
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "oqpsk-tx"
	app.Usage = "IEEE 802.15.4 O-QPSK backscatter transmitter"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Configuration file (default is the built in settings)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Override the configured Log Level (ERROR, INFO or DEBUG)",
		},
	}
	app.Commands = COMMANDS

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

// setup loads the configuration named by the global flags and starts
// logging.
func setup(c *cli.Context) (config, error) {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return cfg, err
	}
	if lvl := c.GlobalString("log-level"); lvl != "" {
		cfg.logLevel = lvl
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(c config) {
	var err error
	minLogLevel := c.logLevel
	logWriter := os.Stderr

	if c.logRoot != "" {
		logWriter, err = os.OpenFile(c.logPath+"/"+c.logRoot+".log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Error opening log output, exiting: %v", err)
		}
	}

	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "ERROR"},
		MinLevel: logutils.LogLevel(minLogLevel),
		Writer:   logWriter,
	}
	log.SetOutput(filter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Print("[DEBUG] Debug is on")
}

// newEventLogger writes one JSON object per event with the level and message
// keys dropped, so each line carries only the event attributes.
func newEventLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey || a.Key == slog.MessageKey {
				return slog.Attr{}
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
