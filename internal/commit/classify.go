package commit

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"

	"github.com/lib/pq"

	"podforge/internal/db"
)

// IsTransient reports whether a commit failure is worth retrying.
// Serialization conflicts (including our optimistic-lock misses),
// deadlocks, dropped connections and network timeouts are transient.
// Everything else, constraint violations in particular, is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, db.ErrStaleEpisode) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001": // serialization_failure
			return true
		case pqErr.Code == "40P01": // deadlock_detected
			return true
		case pqErr.Code.Class() == "08": // connection exceptions
			return true
		case pqErr.Code == "57014": // query_canceled (statement timeout)
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
