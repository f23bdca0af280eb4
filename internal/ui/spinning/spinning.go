// Package spinning provides a spinning symbol to display while the program is busy with something
// that has no progress measure (e.g. loading datasets), and a graceful handling of interruptions.
package spinning

import (
	"context"
	"fmt"
	"golang.org/x/term"
	"k8s.io/klog/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Spinning is a running spinner, see New.
type Spinning struct {
	wg     sync.WaitGroup
	cancel func()
}

var (
	ThemeAscii = []rune("|/-\\")
	ThemeMoon  = []rune("🌑🌒🌓🌔🌕🌖🌗🌘")
	ThemeClock = []rune("🕐🕑🕒🕓🕔🕕🕖🕗🕘🕙🕚🕛")

	// Theme defaults to ThemeClock, but it can be set to anything else.
	Theme = ThemeClock
)

// SafeInterrupt captures SIGINT (Ctrl+C) and SIGTERM and calls onInterrupt.
// If the program hasn't exited after gracePeriod, it resets the terminal and exits.
func SafeInterrupt(onInterrupt func(), gracePeriod time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		fmt.Println()
		klog.Errorf("Got interrupted (signal %q), shutting down... (%s)", s, gracePeriod)
		if onInterrupt != nil {
			go onInterrupt()
		}
		time.Sleep(gracePeriod)
		Reset()
		klog.Fatalf("Graceful shutting down %s period expired, exiting.", gracePeriod)
	}()
}

// Reset terminal: make cursor visible, restore default terminal colors.
func Reset() {
	fmt.Print("\033[?25h\033[39;49;0m\n")
}

// New prints message and starts a spinner after it, on a separate goroutine.
// It stops when Spinning.Done is called or ctx is cancelled.
//
// If stdout is not a terminal, only the message is printed.
func New(ctx context.Context, message string) *Spinning {
	s := &Spinning{}
	fmt.Print(message)
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println()
		return s
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		fmt.Print("\033[?25l")       // Hide cursor.
		defer fmt.Print("\033[?25h") // Restore cursor.

		fmt.Print("  ")
		for idx := 0; ; idx = (idx + 1) % len(Theme) {
			fmt.Printf("\b\b%c", Theme[idx])
			select {
			case <-ctx.Done():
				fmt.Print("\b\b  \n")
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

// Done stops the spinner. It can be called more than once.
func (s *Spinning) Done() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
}
