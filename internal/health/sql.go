package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/systmms/tierup/internal/unit"
)

// SQLPinger is the interface for pinging a database.
type SQLPinger interface {
	PingContext(ctx context.Context) error
	Close() error
}

// SQLOpener opens a database handle for a driver and DSN.
type SQLOpener func(driver, dsn string) (SQLPinger, error)

// SupportedSQLDrivers lists the drivers a SQL check may name.
var SupportedSQLDrivers = []string{"postgres", "mysql"}

// SQLProber pings a database through database/sql.
type SQLProber struct {
	open SQLOpener
}

// NewSQLProber creates a prober using the registered lib/pq and mysql drivers.
func NewSQLProber() *SQLProber {
	return &SQLProber{open: openSQL}
}

// SetOpener replaces how handles are opened, for testing with sqlmock.
func (p *SQLProber) SetOpener(open SQLOpener) {
	p.open = open
}

func openSQL(driver, dsn string) (SQLPinger, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Probe opens a handle, pings it and closes it. A successful ping is Healthy;
// anything else is Starting.
func (p *SQLProber) Probe(ctx context.Context, u unit.Unit) Result {
	start := time.Now()
	check := u.Health

	if !supportedDriver(check.Driver) {
		return Result{
			Status:  unit.StatusUnknown,
			Message: fmt.Sprintf("unsupported sql driver %q", check.Driver),
		}
	}

	db, err := p.open(check.Driver, check.DSN)
	if err != nil {
		return Result{
			Status:   unit.StatusStarting,
			Message:  fmt.Sprintf("open failed: %v", err),
			Duration: time.Since(start),
		}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return Result{
			Status:   unit.StatusStarting,
			Message:  fmt.Sprintf("ping failed: %v", err),
			Duration: time.Since(start),
		}
	}

	elapsed := time.Since(start)
	return Result{
		Status:   unit.StatusHealthy,
		Message:  fmt.Sprintf("%s ping ok in %v", check.Driver, elapsed.Round(time.Millisecond)),
		Duration: elapsed,
	}
}

func supportedDriver(driver string) bool {
	for _, d := range SupportedSQLDrivers {
		if d == driver {
			return true
		}
	}
	return false
}
