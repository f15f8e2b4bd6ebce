/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package lifecycle guards the daemon's single-instance invariant and
// drives cooperative shutdown and reload. SIGTERM/SIGINT cancel the
// scheduler's context (so it stops handing out new work and pushes its
// per-worker shutdown sentinels), then run shutdown hooks newest-first:
// the scheduler drain registered by cmd/serve blocks until both worker
// pools are empty before the earlier-registered pidfile cleanup runs.
// SIGHUP runs the registered reload hooks (cmd/serve wires a dropbox
// config re-discovery) without restarting the process.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

var (
	mu            sync.Mutex
	shutdownHooks []func()
	reloadHooks   []func()
	cancel        context.CancelFunc
)

// RegisterShutdownHook registers a hook run once on SIGTERM/SIGINT.
// Hooks run in reverse registration order, so a dependent registered
// later (the scheduler drain) completes before what it depends on (the
// pidfile written at startup) is torn down.
func RegisterShutdownHook(hook func()) {
	mu.Lock()
	shutdownHooks = append(shutdownHooks, hook)
	mu.Unlock()
}

// RegisterReloadHook registers a hook run on every SIGHUP, in
// registration order.
func RegisterReloadHook(hook func()) {
	mu.Lock()
	reloadHooks = append(reloadHooks, hook)
	mu.Unlock()
}

// RegisterContextCanceller hands lifecycle the scheduler context's cancel
// func, invoked before any shutdown hook so workers stop picking up work
// while the drain is still pending.
func RegisterContextCanceller(c context.CancelFunc) {
	mu.Lock()
	cancel = c
	mu.Unlock()
}

// HandleSignals blocks on the process signal stream until ctx is done or
// a termination signal arrives.
func HandleSignals(ctx context.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for {
		select {
		case sig := <-stop:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				shutdown()
				return
			case syscall.SIGHUP:
				reload()
			}
		case <-ctx.Done():
			return
		}
	}
}

func shutdown() {
	mu.Lock()
	c := cancel
	hooks := make([]func(), len(shutdownHooks))
	copy(hooks, shutdownHooks)
	mu.Unlock()

	if c != nil {
		c()
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	os.Exit(0)
}

func reload() {
	mu.Lock()
	hooks := make([]func(), len(reloadHooks))
	copy(hooks, reloadHooks)
	mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// EnsureSingleInstance refuses to start when another live dropboxd owns
// pidPath, clears a stale pidfile left by a dead one, and claims the path
// for this process. The pidfile is removed again by a shutdown hook.
func EnsureSingleInstance(pidPath string) error {
	if pidPath == "" {
		return fmt.Errorf("invalid PID file path")
	}

	if pid, ok, err := readPIDFile(pidPath); err != nil {
		return err
	} else if ok {
		if processAlive(pid) {
			return fmt.Errorf("another instance is already running (PID: %d)", pid)
		}
		os.Remove(pidPath)
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	RegisterShutdownHook(func() {
		os.Remove(pidPath)
	})
	return nil
}

// readPIDFile returns the PID recorded at path. ok is false when the file
// is absent or empty (an empty file is swept as stale).
func readPIDFile(path string) (pid int, ok bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read PID file: %w", err)
	}

	content := strings.TrimSpace(string(raw))
	if content == "" {
		os.Remove(path)
		return 0, false, nil
	}
	pid, err = strconv.Atoi(content)
	if err != nil {
		return 0, false, fmt.Errorf("invalid PID format: %w", err)
	}
	return pid, true, nil
}

// processAlive probes pid with the null signal. On Unix FindProcess
// always succeeds, so only the signal result is meaningful.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
