package extract

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/coregx/rse/internal/types"
)

// MySQL server and client error numbers that indicate a lost connection or a
// transient lock conflict.
var mysqlTransient = map[uint16]bool{
	1205: true, // lock wait timeout
	1213: true, // deadlock
	2006: true, // server has gone away
	2013: true, // lost connection during query
}

// classify wraps connection-level failures in types.ErrExtractionIO and
// returns every other error unchanged.
func classify(stage Stage, err error) error {
	if err == nil || !transient(err) {
		return err
	}
	return types.ErrExtractionIO.Wrap(err, stage.String(), err.Error())
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlTransient[myErr.Number]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || code == "40001" || code == "40P01" || code == "57014"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// IsRetryable reports whether err is an extraction I/O failure that may
// succeed when the extraction is run again.
func IsRetryable(err error) bool {
	return types.ErrExtractionIO.Is(err)
}
