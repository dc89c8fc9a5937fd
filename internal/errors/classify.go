package errors

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"io"
	"net"
	"syscall"

	"github.com/lib/pq"

	"github.com/julianstephens/habitsync/internal/storage"
)

// Kind groups failures by how the application reacts to them.
type Kind int

const (
	KindNone Kind = iota
	// KindCapability: the host has no durable local storage.
	KindCapability
	// KindConnectivity: the remote backend could not be reached.
	KindConnectivity
	// KindBusy: the backend was reached but could not serve the request
	// right now (serialization failure, deadlock, resource limits).
	KindBusy
	// KindRemote: the backend rejected the request (constraint, validation).
	KindRemote
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCapability:
		return "capability"
	case KindConnectivity:
		return "connectivity"
	case KindBusy:
		return "busy"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// PostgreSQL error classes that mean the connection, not the request, failed.
var connectivityClasses = map[pq.ErrorClass]bool{
	"08": true, // connection exception
	"57": true, // operator intervention (admin shutdown, crash recovery)
}

// PostgreSQL error classes worth retrying on the same connection later.
var busyClasses = map[pq.ErrorClass]bool{
	"40": true, // transaction rollback (serialization failure, deadlock)
	"53": true, // insufficient resources (too many connections, disk full)
}

// lock_not_available is the one retryable code in class 55.
const lockNotAvailable pq.ErrorCode = "55P03"

// PostgreSQL error classes meaning the request itself is wrong.
var rejectedClasses = map[pq.ErrorClass]bool{
	"22": true, // data exception
	"23": true, // integrity constraint violation
	"42": true, // syntax error or access rule violation
}

// Classify maps err onto the error taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if stderrors.Is(err, storage.ErrStorageUnavailable) {
		return KindCapability
	}
	if stderrors.Is(err, storage.ErrOffline) ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, driver.ErrBadConn) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.ECONNRESET) {
		return KindConnectivity
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		switch {
		case connectivityClasses[class]:
			return KindConnectivity
		case busyClasses[class], pqErr.Code == lockNotAvailable:
			return KindBusy
		case rejectedClasses[class]:
			return KindRemote
		}
		return KindUnknown
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return KindConnectivity
	}
	return KindUnknown
}

// IsTransient reports whether retrying err later may succeed.
func IsTransient(err error) bool {
	kind := Classify(err)
	return kind == KindConnectivity || kind == KindBusy
}

// Hint returns a short user-facing suggestion for err, or "".
func Hint(err error) string {
	switch Classify(err) {
	case KindCapability:
		return "Offline mode is unavailable on this host; online commands still work."
	case KindConnectivity:
		return "The remote backend is unreachable; changes made offline are queued until it returns."
	case KindBusy:
		return "The remote backend is busy; queued changes are retried on the next sync."
	default:
		return ""
	}
}
