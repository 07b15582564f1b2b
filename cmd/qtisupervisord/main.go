// Command qtisupervisord is the userspace supervisor's entrypoint: it
// brings up the IPC router client, starts the GPS and RMNET/QMI proxy
// workers, the SMS tick worker, and the status HTTP server, then waits
// for a shutdown signal (spec.md §1, §5).
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openqti-go/qtisupervisor/audio"
	"github.com/openqti-go/qtisupervisor/cellsampler"
	"github.com/openqti-go/qtisupervisor/config"
	"github.com/openqti-go/qtisupervisor/corectx"
	"github.com/openqti-go/qtisupervisor/flash"
	"github.com/openqti-go/qtisupervisor/gpsproxy"
	"github.com/openqti-go/qtisupervisor/ipc"
	"github.com/openqti-go/qtisupervisor/power"
	"github.com/openqti-go/qtisupervisor/rmnetproxy"

	"go.bug.st/serial"
)

func main() {
	flag.String("bind-address", "", "status HTTP server bind address")
	flag.String("qmi-dsp-path", "", "RMNET/QMI DSP-facing character device")
	flag.String("qmi-usb-path", "", "RMNET/QMI USB-facing character device")
	flag.String("gps-dsp-path", "", "GPS DSP-facing character device")
	flag.String("gps-usb-path", "", "GPS USB-facing character device")
	flag.String("cell-serial-port", "", "engineering-mode AT channel")
	flag.Int("cell-baud-rate", 0, "engineering-mode AT channel baud rate")
	flag.String("misc-partition-path", "", "misc partition device node")
	flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(config.WithDefaults(), config.WithEnv(), config.WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Error("supervisor exited", "error", err)
		os.Exit(1)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store := flash.New(cfg.MiscPartitionPath)

	backend := audio.NewSysfsBackend(audio.SysfsRates{})
	core, err := corectx.New(logger, backend)
	if err != nil {
		return err
	}

	usbCtl := power.NewUSBController(store)
	reboot := power.Controller{}
	callback := &power.CallbackFlag{}

	core.Interp.Adb = store
	core.Interp.Usb = usbCtl
	core.Interp.Reboot = reboot
	core.Interp.Callback = callback
	core.Interp.Audio = core.CallAudio
	core.Interp.LogReader = openFileSource("/var/log/openqti.log")
	core.Interp.DmesgReader = openFileSource("/var/log/messages")

	rmnet := rmnetproxy.New(rmnetproxy.Config{
		DSPPath: cfg.QMIDSPPath,
		USBPath: cfg.QMIUSBPath,
		Core:    core,
		Logger:  logger.With("worker", "rmnetproxy"),
	})
	core.Interp.RMNET = rmnet

	gps := gpsproxy.New(gpsproxy.Config{
		DSPPath: cfg.GPSDSPPath,
		USBPath: cfg.GPSUSBPath,
		Logger:  logger.With("worker", "gpsproxy"),
	})
	core.Interp.GPS = gps

	sampler, err := startCellSampler(ctx, cfg, logger)
	if err != nil {
		logger.Warn("cell sampler unavailable, signal report disabled", "error", err)
	} else {
		core.Interp.Cell = sampler
	}

	if err := ipc.InstallSecurityRules(); err != nil {
		logger.Warn("install IPC router security rules", "error", err)
	}
	if err := ipc.InitPortMapper(ctx); err != nil {
		logger.Warn("init IPC router port mapper", "error", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.BindAddress,
		Handler: &statusServer{logger: logger, core: core},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rmnet.Run(gctx) })
	g.Go(func() error { return gps.Run(gctx) })
	g.Go(func() error {
		rmnetproxy.RunSMSTick(gctx, rmnet.Pair, core.Queue, 100*time.Millisecond)
		return nil
	})
	g.Go(func() error {
		logger.Info("status server listening", "address", httpServer.Addr)
		err := httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// startCellSampler opens the engineering AT channel and starts a
// background refresh loop feeding the sampler's cached report.
func startCellSampler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cellsampler.Sampler, error) {
	mode := &serial.Mode{BaudRate: cfg.CellBaudRate}
	dialer := cellsampler.SerialDialer{PortName: cfg.CellSerialPort, Mode: mode}

	session, err := cellsampler.Open(ctx, dialer, cellsampler.DefaultATTimeout)
	if err != nil {
		return nil, err
	}

	sampler := cellsampler.NewSampler(session)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sampler.Refresh(ctx); err != nil {
					logger.Debug("cell sampler refresh failed", "error", err)
				}
			}
		}
	}()
	return sampler, nil
}

// openFileSource adapts a plain file path to a command.LogSource, used
// for the "log"/"dmesg" commands' peripheral file I/O.
func openFileSource(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}
