//go:build sqlite_preupdate_hook

package capture

import (
	sqlite3 "github.com/mattn/go-sqlite3"
)

// HookAvailable reports whether the driver was built with pre-update hook
// support (-tags sqlite_preupdate_hook).
const HookAvailable = true

// Attach registers the interceptor on a driver connection's pre-update
// hook. The hook fires synchronously for every pending insert, update and
// delete before the row is committed.
func (i *Interceptor) Attach(conn *sqlite3.SQLiteConn) error {
	conn.RegisterPreUpdateHook(func(d sqlite3.SQLitePreUpdateData) {
		i.capture(&driverPreUpdate{d: &d})
	})
	return nil
}

// driverPreUpdate adapts the driver's accessor to preUpdateData.
type driverPreUpdate struct {
	d *sqlite3.SQLitePreUpdateData
}

func (p *driverPreUpdate) Operation() int   { return p.d.Op }
func (p *driverPreUpdate) Database() string { return p.d.DatabaseName }
func (p *driverPreUpdate) Table() string    { return p.d.TableName }
func (p *driverPreUpdate) OldRowID() int64  { return p.d.OldRowID }
func (p *driverPreUpdate) NewRowID() int64  { return p.d.NewRowID }

func (p *driverPreUpdate) Old() ([]interface{}, error) {
	row := make([]interface{}, p.d.Count())
	if err := p.d.Old(row...); err != nil {
		return nil, err
	}
	return row, nil
}

func (p *driverPreUpdate) New() ([]interface{}, error) {
	row := make([]interface{}, p.d.Count())
	if err := p.d.New(row...); err != nil {
		return nil, err
	}
	return row, nil
}
