package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/godigester/pkg/config"
	"github.com/itohio/godigester/pkg/digester"
	"github.com/itohio/godigester/pkg/store"
)

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM11 or /dev/ttyUSB0)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use mocked device instead of serial port")
		outFlag     = flag.String("out", "", "Output file for dump (default sensor_data_<timestamp>.csv)")
		timeoutFlag = flag.Duration("timeout", 60*time.Second, "Timeout for dump and status requests")
		listFlag    = flag.Bool("list", false, "List available serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		ports, err := digester.Ports()
		if err != nil {
			log.Fatalf("Failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	var dev digester.Device
	if *mockFlag {
		dev = digester.NewMock(cfg)
	} else {
		dev = digester.New(cfg.Serial.Port, cfg.Serial.BaudRate, 0)
	}

	if err := dev.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer dev.Close()

	switch cmd := flag.Arg(0); cmd {
	case "", "monitor":
		runMonitor(cfg, dev)
	case "dump":
		runDump(dev, *outFlag, *timeoutFlag)
	case "status":
		runStatus(dev, *timeoutFlag)
	default:
		log.Fatalf("Unknown command %q (want monitor, dump or status)", cmd)
	}
}

// runMonitor streams live records, appends them to the local record file,
// and logs heater edges. Persistence failures are logged and ignored; the
// stream continues.
func runMonitor(cfg *config.Config, dev digester.Device) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open record file: %v", err)
	}
	defer s.Close()

	log.Printf("Monitoring %s, appending to %s", cfg.Serial.Port, s.Path())

	var (
		prevHeating bool
		havePrev    bool
	)
	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopping")
			return
		case rec, ok := <-dev.Records():
			if !ok {
				log.Printf("Device stream closed")
				return
			}

			if !havePrev || rec.Heating != prevHeating {
				log.Printf("Heater %s at %.2f C", rec.HeaterToken(), rec.Temperature)
				prevHeating = rec.Heating
				havePrev = true
			}

			fmt.Println(rec.String())
			if err := s.Append(rec); err != nil {
				log.Printf("Failed to append record: %v", err)
			}
		}
	}
}

// runDump requests the on-device record log and writes it to a CSV file.
func runDump(dev digester.Device, out string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	records, skipped, err := dev.Dump(ctx)
	if err != nil {
		log.Fatalf("Dump failed: %v", err)
	}
	if skipped > 0 {
		log.Printf("Skipped %d malformed lines", skipped)
	}

	if out == "" {
		out = fmt.Sprintf("sensor_data_%s.csv", time.Now().Format("20060102_150405"))
	}
	if err := store.Write(out, records); err != nil {
		log.Fatalf("Failed to write %s: %v", out, err)
	}

	log.Printf("Captured %d records to %s", len(records), out)
}

// runStatus prints the controller's one-line status summary.
func runStatus(dev digester.Device, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := dev.Status(ctx)
	if err != nil {
		log.Fatalf("Status failed: %v", err)
	}
	fmt.Println(s)
}
