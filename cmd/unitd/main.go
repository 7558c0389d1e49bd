// SPDX-License-Identifier: MIT

// Command unitd resolves a directory of unit files into a dependency
// graph and supervises the resulting services and sockets until it
// receives a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/unitd-project/unitd"
	"github.com/unitd-project/unitd/internal/log"
	"github.com/unitd-project/unitd/unitfile"
)

func main() {
	if err := run(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		unitDir   string
		notifyDir string
		workers   int
	)
	pflag.StringVar(&unitDir, "unit-dir", envOr("UNITD_UNIT_DIR", "/etc/unitd"),
		"directory to scan for .service/.socket unit files")
	pflag.StringVar(&notifyDir, "notify-dir", envOr("UNITD_NOTIFY_DIR", "/run/unitd"),
		"directory for sd_notify-style unix datagram sockets")
	pflag.IntVar(&workers, "workers", 0,
		"maximum number of units activated concurrently (0: unbounded)")
	pflag.Parse()

	units, err := unitfile.ParseDir(unitDir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", unitDir, err)
	}

	table := unitd.NewTable()
	for _, pu := range units {
		switch pu.Kind {
		case unitd.KindService:
			if _, err := table.AddService(pu.Common, pu.Service); err != nil {
				return fmt.Errorf("admitting %s: %w", pu.Common.Name, err)
			}
		case unitd.KindSocket:
			if _, err := table.AddSocket(pu.Common, pu.Socket); err != nil {
				return fmt.Errorf("admitting %s: %w", pu.Common.Name, err)
			}
		}
	}

	if err := unitd.Resolve(table); err != nil {
		return fmt.Errorf("resolving unit dependencies: %w", err)
	}

	pids := unitd.NewPidTable()
	bridge := unitd.NewExitBridge(pids)
	go bridge.Run()
	defer bridge.Close()

	opts := []unitd.NewOption{unitd.WithNotifyDir(notifyDir)}
	if workers > 0 {
		opts = append(opts, unitd.WithWorkers(workers))
	}
	sched := unitd.NewScheduler(table, pids, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.WireExitBridge(bridge, ctx)

	if errs := sched.Activate(ctx); len(errs) > 0 {
		for _, aerr := range errs {
			log.Warnf("activation: %v", aerr)
		}
	}

	waitForShutdown(ctx, sched, table)
	return nil
}

// waitForShutdown blocks until SIGTERM or SIGINT arrives, then stops every
// running service in reverse dependency order (a unit's dependents are
// stopped before the unit itself), grounded on
// _examples/other_examples/d22cf835_gravitational-teleport__lib-service-signals.go.go's
// signal.Notify + select shutdown loop shape.
func waitForShutdown(ctx context.Context, sched *unitd.Scheduler, table *unitd.Table) {
	sigC := make(chan os.Signal, 16)
	signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigC)

	<-sigC
	log.Infof("shutting down")

	for _, u := range table.All() {
		if u.Kind != unitd.KindService {
			continue
		}
		if err := sched.StopService(ctx, u); err != nil {
			log.Warnf("stopping %s: %v", u.Id.Name, err)
		}
	}
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}
