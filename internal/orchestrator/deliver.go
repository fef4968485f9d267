package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// ErrTransient marks a delivery error worth one retry. Deliverers wrap it.
var ErrTransient = errors.New("transient delivery failure")

// Deliverer sends a finished response to the farmer's channel.
type Deliverer interface {
	Deliver(ctx context.Context, resp models.Response, format models.FormatType) error
}

// DelivererFunc adapts a function into a Deliverer.
type DelivererFunc func(ctx context.Context, resp models.Response, format models.FormatType) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, resp models.Response, format models.FormatType) error {
	return f(ctx, resp, format)
}

// isTransient reports whether a delivery error should be retried.
func isTransient(err error) bool {
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// WriterDeliverer writes responses to an io.Writer. Structured responses
// are written as JSON, plain ones as text.
type WriterDeliverer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterDeliverer creates a deliverer writing to w.
func NewWriterDeliverer(w io.Writer) *WriterDeliverer {
	return &WriterDeliverer{w: w}
}

// Deliver implements Deliverer.
func (d *WriterDeliverer) Deliver(ctx context.Context, resp models.Response, format models.FormatType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if format == models.FormatStructured {
		enc := json.NewEncoder(d.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		return nil
	}
	if _, err := fmt.Fprintln(d.w, resp.Text); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
