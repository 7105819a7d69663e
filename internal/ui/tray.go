// Package ui puts the agent in the system tray.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/orchestrator"
)

const refreshInterval = 5 * time.Second

type Tray struct {
	stories catalog.StoryService
	runner  *orchestrator.Runner
	logger  *slog.Logger
	apiURL  string

	statusItem  *systray.MenuItem
	storiesItem *systray.MenuItem
	pauseItem   *systray.MenuItem

	mu sync.Mutex

	onShowURL func(url string) error
	onQuit    func()
}

type TrayConfig struct {
	Stories   catalog.StoryService
	Runner    *orchestrator.Runner
	Logger    *slog.Logger
	APIURL    string
	OnShowURL func(url string) error
	OnQuit    func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		stories:   cfg.Stories,
		runner:    cfg.Runner,
		logger:    cfg.Logger,
		apiURL:    cfg.APIURL,
		onShowURL: cfg.OnShowURL,
		onQuit:    cfg.OnQuit,
	}
}

// Run blocks until the tray exits. The menu is refreshed until ctx is done.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Dreamboard")
	systray.SetTooltip("Dreamboard story agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Batch runner status")
	t.statusItem.Disable()

	t.storiesItem = systray.AddMenuItem("Stories: 0", "Stories on this machine")
	t.storiesItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause queued batches")
	urlItem := systray.AddMenuItem("Show API URL", t.apiURL)

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Dreamboard")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		t.refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				systray.Quit()
				return
			case <-ticker.C:
				t.refresh(ctx)
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-urlItem.ClickedCh:
				t.handleShowURL()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh(ctx context.Context) {
	if n, err := t.stories.CountStories(ctx); err == nil {
		t.UpdateStoriesCount(n)
	}
	switch {
	case t.runner == nil:
	case t.runner.IsBusy():
		t.UpdateStatus("Generating")
	default:
		t.UpdateStatus("Idle")
	}
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleShowURL() {
	if t.onShowURL != nil {
		if err := t.onShowURL(t.apiURL); err != nil {
			t.logger.Error("failed to show API URL", "error", err)
		}
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateStoriesCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.storiesItem.SetTitle(fmt.Sprintf("Stories: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
