package db

import (
	"strings"

	"github.com/teranos/dawn/errors"
)

// ErrDatabaseClosed marks a history write that raced the scheduler closing
// its database on shutdown.
var ErrDatabaseClosed = errors.New("execution history database is closed")

// closedMessage is what database/sql reports for a closed *sql.DB
const closedMessage = "sql: database is closed"

// IsDatabaseClosed reports whether err comes from using the history database
// after Close. database/sql returns an unexported error for this, so the
// driver message is matched as well as ErrDatabaseClosed.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), closedMessage)
}
