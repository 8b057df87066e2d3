// lisactl is an operator CLI for Open LISA servers: it lists and manages
// instruments, sends commands, transfers files, and runs remote diagnostics
// over any of the SDK's transports.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	openlisa "github.com/openlisa/openlisa-go"
)

var (
	// Global flags
	cfgFile    string
	tcpAddr    string // host:port, overrides config
	serialMode bool
	serialPort string
	baudRate   int
	wsURL      string
	logLevel   string

	// Shared state set during PersistentPreRunE
	cfg *Config
	sdk *openlisa.SDK
)

var rootCmd = &cobra.Command{
	Use:           "lisactl",
	Short:         "Control Open LISA instrument servers",
	Long:          "lisactl talks to an Open LISA server over TCP, RS232 or WebSocket:\nmanage registered instruments, validate and send instrument commands,\ntransfer files, and run remote diagnostics.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = DefaultConfigPath()
		}
		cfg = LoadConfig(path)
		applyFlagOverrides()

		log := logrus.New()
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		log.SetLevel(level)

		format := openlisa.FormatJSON
		if cfg.Format == "native" {
			format = openlisa.FormatNative
		}
		sdk = openlisa.New(openlisa.Config{
			ResponseFormat: format,
			Logger:         log,
		})
		return connect()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if sdk != nil {
			sdk.Disconnect()
		}
	},
}

func applyFlagOverrides() {
	if tcpAddr != "" {
		cfg.Connection.Mode = "tcp"
		if host, portStr, err := net.SplitHostPort(tcpAddr); err == nil {
			cfg.Connection.Host = host
			if port, err := strconv.Atoi(portStr); err == nil {
				cfg.Connection.Port = port
			}
		}
	}
	if serialMode || serialPort != "" {
		cfg.Connection.Mode = "serial"
	}
	if serialPort != "" {
		cfg.Connection.SerialPort = serialPort
	}
	if baudRate != 0 {
		cfg.Connection.BaudRate = baudRate
	}
	if wsURL != "" {
		cfg.Connection.Mode = "websocket"
		cfg.Connection.URL = wsURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func connect() error {
	switch cfg.Connection.Mode {
	case "tcp":
		return sdk.ConnectTCP(cfg.Connection.Host, cfg.Connection.Port)
	case "serial":
		return sdk.ConnectSerial(openlisa.SerialOptions{
			BaudRate: cfg.Connection.BaudRate,
			Port:     cfg.Connection.SerialPort,
		})
	case "websocket":
		return sdk.ConnectWebSocket(cfg.Connection.URL)
	}
	return fmt.Errorf("unknown connection mode %q (want tcp, serial or websocket)", cfg.Connection.Mode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/lisactl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "connect over TCP to host:port")
	rootCmd.PersistentFlags().BoolVar(&serialMode, "serial", false, "connect over RS232 (autodiscovers the server port)")
	rootCmd.PersistentFlags().StringVar(&serialPort, "serial-port", "", "pin RS232 discovery to one device, e.g. /dev/ttyUSB0")
	rootCmd.PersistentFlags().IntVar(&baudRate, "baud", 0, "RS232 baud rate (default 921600)")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws", "", "connect over WebSocket to a ws:// or wss:// URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warning, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
