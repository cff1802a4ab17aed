package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Busy animates a spinner until stop is called. Without a terminal it prints
// nothing.
func (v *View) Busy() (stop func()) {
	if !v.tty {
		return func() {}
	}

	s := spinner.Dot
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.FPS)
		defer ticker.Stop()

		for i := 0; ; i++ {
			v.mu.Lock()
			fmt.Fprintf(v.out, "\r%s %s", v.infoStyle.Render(s.Frames[i%len(s.Frames)]), "AI is thinking...")
			v.mu.Unlock()

			select {
			case <-done:
				v.mu.Lock()
				fmt.Fprint(v.out, "\r\033[K")
				v.mu.Unlock()
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
