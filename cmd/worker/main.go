// Command worker transfers a single job: it downloads the source URL and
// replicates it to the selected destinations, reporting through the job's
// status document.
//
// Usage:
//
//	worker [flags] <job_id> <source_url> <target_filename> <dest1,dest2,...>
//
// The exit code is not the job's success signal; the job outcome lives in
// the status document. A non-zero exit means the worker could not even
// initialize its status document.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/catalog"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/worker"
)

func main() {
	statusDir := flag.String("status-dir", "job_statuses", "directory for status documents and cancel sentinels")
	workDir := flag.String("work-dir", "downloads", "directory for temporary downloads")
	catalogPath := flag.String("catalog", "destinations.yml", "destination catalog file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if flag.NArg() != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <job_id> <source_url> <target_filename> <dest1,dest2,...>\n", os.Args[0])
		os.Exit(2)
	}

	jobID := flag.Arg(0)
	url := flag.Arg(1)
	filename := flag.Arg(2)
	destinations := strings.Split(flag.Arg(3), ",")

	filesystem := vfs.NewOS(".")
	for _, dir := range []string{*statusDir, *workDir} {
		if err := filesystem.MkdirAll(dir, 0o755); err != nil {
			log.Error("creating directory failed", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	cat, err := catalog.Load(filesystem, *catalogPath)
	if err != nil {
		log.Error("loading destination catalog failed", "path", *catalogPath, "error", err)
		os.Exit(1)
	}

	w := worker.New(worker.Config{
		JobID:        jobID,
		URL:          url,
		Filename:     filename,
		Destinations: destinations,
		Catalog:      cat,
		FS:           filesystem,
		StatusDir:    *statusDir,
		WorkDir:      *workDir,
		Logger:       log,
	})

	if err := w.Run(context.Background()); err != nil {
		log.Error("worker could not initialize", "job_id", jobID, "error", err)
		os.Exit(1)
	}
}
