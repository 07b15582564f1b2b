// Package config builds the supervisor's runtime configuration through
// ordered functional options, the same LoadConfig(WithDefaults(),
// WithEnv(), WithFlags(...)) shape the source's command-line tool uses.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds every device path and tunable the supervisor's workers
// need at startup.
type Config struct {
	// BindAddress is the address the status HTTP server listens on.
	BindAddress string

	// QMIDSPPath/QMIUSBPath are the RMNET/QMI character devices C4/C5
	// bridge between the DSP and the USB host.
	QMIDSPPath string
	QMIUSBPath string

	// GPSDSPPath/GPSUSBPath are the NMEA character devices C3 bridges.
	GPSDSPPath string
	GPSUSBPath string

	// CellSerialPort is the AT-command serial port the cell sampler
	// polls for engineering-mode and indicator reports.
	CellSerialPort string
	CellBaudRate   int

	// MiscPartitionPath is the raw misc-partition device node the flash
	// store reads/writes persistent settings from (spec.md §6).
	MiscPartitionPath string

	// LogLevel sets the structured logger's minimum level.
	LogLevel string
}

// Option mutates a Config in place.
type Option func(*Config) error

// Load builds a Config by applying opts in order, so later options (env,
// then flags) override earlier ones (defaults).
func Load(opts ...Option) (*Config, error) {
	c := &Config{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithDefaults applies the supervisor's stock device paths.
func WithDefaults() Option {
	return func(c *Config) error {
		c.BindAddress = "127.0.0.1:8080"
		c.QMIDSPPath = "/dev/smdcntl8"
		c.QMIUSBPath = "/dev/ttyGS1"
		c.GPSDSPPath = "/dev/smdcntl9"
		c.GPSUSBPath = "/dev/ttyGS2"
		c.CellSerialPort = "/dev/smdcntl1"
		c.CellBaudRate = 115200
		c.MiscPartitionPath = "/dev/mtdblock12"
		c.LogLevel = "info"
		return nil
	}
}

// WithEnv overrides fields already set from an equivalent environment
// variable.
func WithEnv() Option {
	return func(c *Config) error {
		if v := os.Getenv("QTISUPERVISOR_BIND_ADDRESS"); v != "" {
			c.BindAddress = v
		}
		if v := os.Getenv("QTISUPERVISOR_QMI_DSP_PATH"); v != "" {
			c.QMIDSPPath = v
		}
		if v := os.Getenv("QTISUPERVISOR_QMI_USB_PATH"); v != "" {
			c.QMIUSBPath = v
		}
		if v := os.Getenv("QTISUPERVISOR_GPS_DSP_PATH"); v != "" {
			c.GPSDSPPath = v
		}
		if v := os.Getenv("QTISUPERVISOR_GPS_USB_PATH"); v != "" {
			c.GPSUSBPath = v
		}
		if v := os.Getenv("QTISUPERVISOR_CELL_SERIAL_PORT"); v != "" {
			c.CellSerialPort = v
		}
		if v := os.Getenv("QTISUPERVISOR_CELL_BAUD_RATE"); v != "" {
			if b, err := strconv.Atoi(v); err == nil {
				c.CellBaudRate = b
			}
		}
		if v := os.Getenv("QTISUPERVISOR_MISC_PARTITION_PATH"); v != "" {
			c.MiscPartitionPath = v
		}
		if v := os.Getenv("QTISUPERVISOR_LOG_LEVEL"); v != "" {
			c.LogLevel = v
		}
		return nil
	}
}

// WithFlags overrides fields from the flags actually set on fs (flags
// left at their zero value don't clobber earlier options, mirroring
// flag.FlagSet.Visit's "only visited flags" semantics).
func WithFlags(fs *flag.FlagSet) Option {
	return func(c *Config) error {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "qmi-dsp-path":
				c.QMIDSPPath = f.Value.String()
			case "qmi-usb-path":
				c.QMIUSBPath = f.Value.String()
			case "gps-dsp-path":
				c.GPSDSPPath = f.Value.String()
			case "gps-usb-path":
				c.GPSUSBPath = f.Value.String()
			case "cell-serial-port":
				c.CellSerialPort = f.Value.String()
			case "cell-baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.CellBaudRate = b
				}
			case "misc-partition-path":
				c.MiscPartitionPath = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			}
		})
		return nil
	}
}
