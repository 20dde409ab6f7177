// Package repository implements MySQL persistence for users, identities and
// the journal resources. The sentinel errors below let higher layers
// distinguish failure scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist or is not
// owned by the caller. Handlers translate it into a 404.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert into users violates the unique
// email index.
var ErrEmailExists = errors.New("email already exists")

// ErrIdentityExists is returned when an external subject is already linked.
var ErrIdentityExists = errors.New("external identity already linked")

// ErrConflict is returned when a write cannot proceed because of existing
// state, such as a second mood entry for the same day or an invite that has
// already been redeemed.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
