// Package mpv drives an mpv process over its JSON IPC socket, adapting it
// to the engine.Engine interface.
package mpv

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/engine"
)

const socketDialTimeout = 10 * time.Second

// Player is an engine.Engine backed by a fullscreen mpv process
type Player struct {
	cmd    *exec.Cmd
	ipc    *ipcClient
	events chan engine.Event
	logger *logrus.Logger
}

// New spawns mpv in idle fullscreen mode and connects to its IPC socket
func New(binary, socketPath string, logger *logrus.Logger) (*Player, error) {
	cmd := exec.Command(binary,
		"--idle=yes",
		"--fullscreen=yes",
		"--keep-open=no",
		"--no-osc",
		"--ytdl=no",
		"--input-ipc-server="+socketPath,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start media engine: %w", err)
	}

	p := &Player{
		cmd:    cmd,
		events: make(chan engine.Event, 16),
		logger: logger,
	}

	conn, err := dialSocket(socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("failed to connect to engine socket: %w", err)
	}

	p.ipc = newIPCClient(conn, p.handleEvent, logger)

	// Surface an unexpected process death as a crash event.
	go func() {
		err := cmd.Wait()
		p.logger.WithError(err).Debug("Media engine process exited")
		p.emit(engine.Event{Type: engine.EventCrashed, Detail: "process exited"})
	}()

	logger.WithField("socket", socketPath).Info("Media engine started")
	return p, nil
}

// dialSocket retries until mpv has created its IPC socket
func dialSocket(socketPath string) (net.Conn, error) {
	var conn net.Conn
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = socketDialTimeout

	err := backoff.Retry(func() error {
		c, err := net.Dial("unix", socketPath)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, policy)
	return conn, err
}

func (p *Player) handleEvent(name, reason string) {
	switch name {
	case "file-loaded":
		p.emit(engine.Event{Type: engine.EventReady})
	case "end-file":
		if reason == "eof" {
			p.emit(engine.Event{Type: engine.EventEndOfStream})
		}
	case "shutdown":
		p.emit(engine.Event{Type: engine.EventCrashed, Detail: "engine shut down"})
	}
}

func (p *Player) emit(ev engine.Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.WithField("event", ev.Type).Warn("Dropping engine event, channel full")
	}
}

// Play loads path at the given offset and attaches subtitle files
func (p *Player) Play(ctx context.Context, path string, start time.Duration, subtitles []string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("media file not accessible: %w", err)
	}

	opts := fmt.Sprintf("start=%d,pause=no", int(start/time.Second))
	if _, err := p.ipc.command(ctx, "loadfile", path, "replace", opts); err != nil {
		return fmt.Errorf("failed to load file: %w", err)
	}
	for _, sub := range subtitles {
		if _, err := p.ipc.command(ctx, "sub-add", sub, "auto"); err != nil {
			p.logger.WithError(err).WithField("subtitle", sub).Warn("Failed to attach subtitle")
		}
	}
	return nil
}

func (p *Player) Pause() error {
	return p.setProperty("pause", true)
}

func (p *Player) Resume() error {
	return p.setProperty("pause", false)
}

func (p *Player) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), ipcRequestTimeout)
	defer cancel()
	_, err := p.ipc.command(ctx, "stop")
	return err
}

func (p *Player) Position() (time.Duration, error) {
	return p.durationProperty("time-pos")
}

func (p *Player) Duration() (time.Duration, error) {
	return p.durationProperty("duration")
}

func (p *Player) AdjustVolume(delta int) error {
	ctx, cancel := context.WithTimeout(context.Background(), ipcRequestTimeout)
	defer cancel()
	_, err := p.ipc.command(ctx, "add", "volume", delta)
	return err
}

func (p *Player) ShowTitle(title string, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), ipcRequestTimeout)
	defer cancel()
	_, err := p.ipc.command(ctx, "show-text", title, int(d/time.Millisecond))
	return err
}

func (p *Player) ToggleMute() error {
	ctx, cancel := context.WithTimeout(context.Background(), ipcRequestTimeout)
	defer cancel()
	_, err := p.ipc.command(ctx, "cycle", "mute")
	return err
}

// Events delivers engine notifications
func (p *Player) Events() <-chan engine.Event {
	return p.events
}

// Close terminates the mpv process and releases the IPC connection
func (p *Player) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ipcRequestTimeout)
	defer cancel()
	p.ipc.command(ctx, "quit")
	p.ipc.close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	return nil
}

func (p *Player) setProperty(name string, value interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), ipcRequestTimeout)
	defer cancel()
	_, err := p.ipc.command(ctx, "set_property", name, value)
	return err
}

func (p *Player) durationProperty(name string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ipcRequestTimeout)
	defer cancel()
	data, err := p.ipc.command(ctx, "get_property", name)
	if err != nil {
		return 0, err
	}
	secs, ok := data.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected %s value %v", name, data)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
