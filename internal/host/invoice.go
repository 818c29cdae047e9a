package host

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// InvoiceOpener presents an invoice link to the user.
// Implementations that cannot observe payment return InvoicePending.
type InvoiceOpener interface {
	Open(url string) (InvoiceStatus, error)
}

// ViewOpener leaves presentation to the view, which shows the link it was
// given. Payment is observed out of band, so the status stays pending.
type ViewOpener struct{}

func (ViewOpener) Open(string) (InvoiceStatus, error) {
	return InvoicePending, nil
}

// CommandOpener runs Command with the link appended, e.g. "xdg-open".
type CommandOpener struct {
	Command string
}

func (c CommandOpener) Open(url string) (InvoiceStatus, error) {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return InvoiceFailed, fmt.Errorf("empty invoice opener command")
	}
	args := append(fields[1:], url)
	if err := exec.Command(fields[0], args...).Run(); err != nil {
		return InvoiceFailed, fmt.Errorf("invoice opener %q: %w", fields[0], err)
	}
	return InvoicePending, nil
}

// StaticOpener reports a fixed status. Useful for tests and demos.
type StaticOpener struct {
	Status InvoiceStatus
	Err    error

	mu     sync.Mutex
	opened []string
}

func (s *StaticOpener) Open(url string) (InvoiceStatus, error) {
	s.mu.Lock()
	s.opened = append(s.opened, url)
	s.mu.Unlock()
	return s.Status, s.Err
}

// Opened lists the links presented so far.
func (s *StaticOpener) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}
