package allocator

import (
	"fmt"

	"github.com/fxnlabs/gpumem/internal/platform"
	"go.uber.org/zap"
)

// deviceBinding records the device ordinal an allocator targets and threads
// every device-backed call through the platform's ambient active-device
// register.
//
// The active device is process-wide mutable state. Two allocators bound to
// different devices must not interleave device-bound work on the same thread
// without re-activating; the binding re-activates before every allocation for
// exactly that reason.
type deviceBinding struct {
	ordinal int
	plat    platform.Platform
	log     *zap.Logger
}

// activate switches the ambient active device to the bound ordinal if it
// differs. In strict mode a failed read or switch is fatal; otherwise the
// failure is ignored, since best-effort activation commonly runs during
// shutdown when device state may already be invalid.
func (b *deviceBinding) activate(strict bool) error {
	cur, err := b.plat.ActiveDevice()
	if err == nil && cur != b.ordinal {
		err = b.plat.SetActiveDevice(b.ordinal)
	}
	if err != nil && strict {
		return fmt.Errorf("switch to device %d: %w", b.ordinal, err)
	}
	return nil
}

// ensureCurrent is a consistency check only: it reads the active device and
// logs a mismatch without correcting it. If the read itself fails and strict
// is set, the failure is surfaced.
func (b *deviceBinding) ensureCurrent(strict bool) error {
	cur, err := b.plat.ActiveDevice()
	if err != nil {
		if strict {
			return fmt.Errorf("read active device: %w", err)
		}
		return nil
	}
	if cur != b.ordinal {
		b.log.Warn("active device does not match allocator binding",
			zap.Int("active", cur),
			zap.Int("bound", b.ordinal))
	}
	return nil
}
