// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Fantom-foundation/monotree/common"
	"go.uber.org/zap"
)

const ErrCanceled = common.ConstError("interrupted")

// IsCancelled reports whether the given context has been canceled.
func IsCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// CancelOnInterrupt returns a context canceled on SIGINT or SIGTERM, giving
// long running operations the chance to leave the trie in a consistent state.
// The returned cancel function stops listening for signals.
func CancelOnInterrupt(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case <-c:
			log.Warn("interrupted, finishing current step before shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
