package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	// Bucket drivers available to remote.bucket_url.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/mkarpin/blobfetch/internal/adapter/cloudblob"
	"github.com/mkarpin/blobfetch/internal/adapter/localfs"
	"github.com/mkarpin/blobfetch/internal/adapter/sqlite"
	"github.com/mkarpin/blobfetch/internal/config"
	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/logger"
	"github.com/mkarpin/blobfetch/internal/transfer"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "blobfetch",
		Usage:   "browse and retrieve objects from a remote blob store",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "download one object",
				ArgsUsage: "OBJECT [DEST]",
				Action:    cmdGet,
			},
			{
				Name:      "batch",
				Usage:     "download every object matching a pattern",
				ArgsUsage: "PATTERN",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "local destination directory (default: transfer.local_dir)",
					},
				},
				Action: cmdBatch,
			},
			{
				Name:      "resume",
				Usage:     "resume an interrupted download",
				ArgsUsage: "OBJECT",
				Action:    cmdResume,
			},
			{
				Name:   "sessions",
				Usage:  "list resumable download sessions",
				Action: cmdSessions,
			},
			{
				Name:      "ls",
				Usage:     "list remote objects",
				ArgsUsage: "[PATTERN]",
				Action:    cmdList,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "blobfetch: %v\n", err)
		os.Exit(1)
	}
}

// env holds everything a command needs after bootstrap.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	bucket *cloudblob.Bucket
	store  *sqlite.Store
	engine *transfer.Engine
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	if e.bucket != nil {
		e.bucket.Close()
	}
	logger.Sync()
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, logger.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return nil, err
	}
	log := logger.GetZapLogger()

	bucket, err := cloudblob.Open(c.Context, cfg.Remote.BucketURL, log)
	if err != nil {
		return nil, err
	}

	var store *sqlite.Store
	dbPath := cfg.Session.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Transfer.LocalDir, ".blobfetch.db")
	}
	store, err = sqlite.Open(dbPath)
	if err != nil {
		bucket.Close()
		return nil, err
	}

	engine := transfer.New(
		&transfer.Config{
			Container:        cfg.Remote.Container,
			Prefix:           cfg.Remote.Prefix,
			ProgressInterval: cfg.Transfer.GetProgressInterval(),
		},
		bucket, bucket, localfs.NewResolver(), store, nil, log,
	)

	return &env{cfg: cfg, log: log, bucket: bucket, store: store, engine: engine}, nil
}

func cmdGet(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: blobfetch get OBJECT [DEST]")
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	objectName := c.Args().Get(0)
	dest := c.Args().Get(1)
	if dest == "" {
		dest = localfs.NewResolver().Resolve(e.cfg.Transfer.LocalDir, objectName)
	}

	result := e.engine.StartDownload(c.Context, objectName, dest,
		e.cfg.Transfer.DownloadOptions(), renderProgress)
	return reportResult(result)
}

func cmdBatch(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: blobfetch batch PATTERN")
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	dir := c.String("dir")
	if dir == "" {
		dir = e.cfg.Transfer.LocalDir
	}

	results := e.engine.StartBatchDownload(c.Context, c.Args().Get(0), dir,
		e.cfg.Transfer.DownloadOptions(), nil, renderBatchProgress)
	fmt.Println()

	failed := 0
	for _, r := range results {
		if r.Success {
			fmt.Printf("  ok    %s -> %s (%s)\n",
				r.ObjectName, r.LocalFilePath, humanize.IBytes(uint64(r.BytesDownloaded)))
		} else if r.Skipped() {
			fmt.Printf("  skip  %s\n", r.ObjectName)
		} else {
			failed++
			fmt.Printf("  FAIL  %s: %s\n", r.ObjectName, r.ErrorMessage())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d objects failed", failed, len(results))
	}
	return nil
}

func cmdResume(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: blobfetch resume OBJECT")
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	sess, err := e.store.Get(e.cfg.Remote.Container, c.Args().Get(0))
	if err != nil {
		return err
	}

	result := e.engine.ResumeDownload(c.Context, sess,
		e.cfg.Transfer.DownloadOptions(), renderProgress)
	return reportResult(result)
}

func cmdSessions(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	sessions, err := e.store.ListPending()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no resumable sessions")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s / %s  updated %s\n",
			s.ObjectName,
			humanize.IBytes(uint64(s.DownloadedBytes)),
			humanize.IBytes(uint64(s.TotalBytes)),
			humanize.Time(s.LastUpdatedAt))
	}
	return nil
}

func cmdList(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	names, err := e.bucket.List(c.Context, c.Args().Get(0), e.cfg.Remote.Prefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func reportResult(result domain.DownloadResult) error {
	fmt.Println()
	if result.Success {
		fmt.Printf("downloaded %s -> %s (%s)\n",
			result.ObjectName, result.LocalFilePath, humanize.IBytes(uint64(result.BytesDownloaded)))
		return nil
	}
	if result.Skipped() {
		fmt.Printf("skipped %s: file already exists\n", result.ObjectName)
		return nil
	}
	return fmt.Errorf("download %s: %s", result.ObjectName, result.ErrorMessage())
}

func renderProgress(snap domain.ProgressSnapshot) {
	fmt.Printf("\r[%s] %s  %5.1f%%  %s / %s  %s/s  (retries: %d)   ",
		snap.Stage, snap.ObjectName, snap.Percentage,
		humanize.IBytes(uint64(snap.DownloadedBytes)),
		humanize.IBytes(uint64(snap.TotalBytes)),
		humanize.IBytes(uint64(snap.BytesPerSecond)),
		snap.RetryCount)
}

func renderBatchProgress(p domain.BatchProgress) {
	fmt.Printf("\r[%d/%d] %s  %s / %s  %s/s   ",
		p.CompletedObjects+p.FailedObjects, p.TotalObjects,
		p.Current.ObjectName,
		humanize.IBytes(uint64(p.DownloadedBytes)),
		humanize.IBytes(uint64(p.TotalBytes)),
		humanize.IBytes(uint64(p.Current.BytesPerSecond)))
}
