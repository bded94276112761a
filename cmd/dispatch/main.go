// Command dispatch scans the job registry and launches one worker process
// per pending job. It can also clear terminal jobs from the registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/dispatch"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/registry"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

func main() {
	registryPath := flag.String("registry", "master_job_list.json", "job registry file")
	workerBin := flag.String("worker-bin", "worker", "worker executable")
	logDir := flag.String("log-dir", "job_logs", "directory for per-job worker logs")
	clear := flag.Bool("clear", false, "remove terminal jobs from the registry instead of dispatching")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	store := registry.NewStore(vfs.NewOS("."), *registryPath, log)

	if *clear {
		removed, err := store.ClearTerminal()
		if err != nil {
			log.Error("clearing terminal jobs failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("removed %d terminal jobs\n", removed)
		return
	}

	d := dispatch.New(store, &dispatch.ExecLauncher{
		WorkerBin: *workerBin,
		LogDir:    *logDir,
	}, log)

	report, err := d.DispatchPending(context.Background())
	if err != nil {
		log.Error("dispatch failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("launched %d workers\n", len(report.Launched))
	for jobID, launchErr := range report.Failures {
		fmt.Fprintf(os.Stderr, "job %s failed to launch: %v\n", jobID, launchErr)
	}
	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}
