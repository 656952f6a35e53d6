package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/schollz/progressbar/v3"

	"github.com/dropdeck/dropdeck/pkg/history"
	"github.com/dropdeck/dropdeck/pkg/service"
	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/transfer"
	"github.com/dropdeck/dropdeck/pkg/types"
)

// CLI submits a batch of local files through the upload tracker and
// renders live progress, without running the HTTP server.
type CLI struct {
	Files        []string      `arg:"" name:"files" help:"Files to upload" type:"existingfile"`
	Tick         time.Duration `help:"Progress tick interval" default:"200ms"`
	MaxIncrement float64       `help:"Maximum per-tick progress gain in percent" default:"15"`
	MaxFileSize  int64         `help:"Reject files larger than this many bytes" default:"104857600"`
	History      string        `help:"SQLite DSN for the transfer log (empty keeps it in memory)"`
}

func (cmd *CLI) Run() error {
	files := store.NewFileStore()
	sessions := store.NewSessionStore()

	events, err := history.NewRepository(cmd.History)
	if err != nil {
		return fmt.Errorf("failed to open history log: %w", err)
	}
	defer events.Close()

	simulator := transfer.NewSimulator(transfer.Config{
		TickInterval: cmd.Tick,
		MaxIncrement: cmd.MaxIncrement,
	})

	svcConfig := service.DefaultServiceConfig()
	svcConfig.EnableLogging = false
	svcConfig.Constraints = types.Constraints{MaxFileSizeBytes: cmd.MaxFileSize}

	registry := service.NewServiceRegistry(files, sessions, simulator, events, svcConfig)
	registry.UploadService.AddListener(newRenderer())

	var batch []types.FileMeta
	for _, path := range cmd.Files {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		batch = append(batch, types.FileMeta{
			Name:           filepath.Base(path),
			SizeBytes:      info.Size(),
			MimeType:       mimeType,
			LastModifiedAt: info.ModTime(),
		})
	}

	result, err := registry.UploadService.SubmitBatch(context.Background(), batch)
	if err != nil {
		return err
	}
	for _, rejection := range result.Rejected {
		fmt.Printf("skipped %s: %s\n", rejection.Name, rejection.Reason)
	}

	registry.UploadService.Wait()

	session, err := registry.UploadService.GetSession(result.SessionID)
	if err != nil {
		return err
	}
	stats, err := registry.StatsService.GetGlobalStats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("\nSession %s: %s of %s uploaded at %s\n",
		session.ID,
		types.FormatBytes(session.UploadedSizeBytes),
		types.FormatBytes(session.TotalSizeBytes),
		types.FormatSpeed(session.AverageSpeedBytesSec))
	fmt.Printf("Totals: %d/%d files, %d active / %d completed sessions\n",
		stats.CompletedFiles, stats.TotalFiles, stats.ActiveSessions, stats.CompletedSessions)
	return nil
}

// renderer drives one progress bar per file. Files within a batch upload
// sequentially, so at most one bar is live at a time.
type renderer struct {
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newRenderer() *renderer {
	return &renderer{bars: make(map[string]*progressbar.ProgressBar)}
}

func (r *renderer) OnFileProgress(event types.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bar, ok := r.bars[event.ID]
	if !ok {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription(event.Name),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		r.bars[event.ID] = bar
	}
	_ = bar.Set(int(event.ProgressPercent))
}

func (r *renderer) OnFileFinished(event types.ProgressEvent, err error) {
	r.mu.Lock()
	bar, ok := r.bars[event.ID]
	delete(r.bars, event.ID)
	r.mu.Unlock()

	if ok {
		_ = bar.Finish()
	}
	if err != nil {
		fmt.Printf("failed  %s: %v\n", event.Name, err)
		return
	}
	fmt.Printf("done    %s -> %s\n", event.Name, event.RemoteURL)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
