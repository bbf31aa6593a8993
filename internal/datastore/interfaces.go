// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/campuskit/faceroll/internal/conf"
)

// Interface abstracts the underlying database implementation and defines the
// operations the rest of the application performs against the store.
type Interface interface {
	Open() error
	Close() error
	SetMetrics(m *Metrics)

	// People
	SavePerson(ctx context.Context, person *Person) error
	GetPerson(ctx context.Context, id uint) (Person, error)
	GetPersonByRegNo(ctx context.Context, regNo string) (Person, error)
	ListPeople(ctx context.Context) ([]Person, error)
	ListGroup(ctx context.Context, groupTag string) ([]Person, error)
	SearchPeople(ctx context.Context, query string) ([]Person, error)
	DeletePerson(ctx context.Context, id uint) error
	DistinctGroups(ctx context.Context) ([]string, error)
	SetEmbedding(ctx context.Context, personID uint, embedding []byte) error
	ClearEmbedding(ctx context.Context, personID uint) error

	// Attendance ledger
	CommitAttendance(ctx context.Context, personID uint, confidence float64, mode string) (CommitOutcome, error)
	AttendanceOn(ctx context.Context, date string) ([]AttendanceEntry, error)
	AttendanceBetween(ctx context.Context, startDate, endDate string) ([]AttendanceEntry, error)
	IsMarked(ctx context.Context, personID uint, date string) (bool, error)
	CountOn(ctx context.Context, date string) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance

	metrics   *Metrics
	metricsMu sync.RWMutex // Protects metrics field access

	monitorCancel context.CancelFunc // stops the monitoring goroutines
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		// Consider handling the case where neither database is enabled
		return nil
	}
}

// SetMetrics attaches observability metrics to the store. Safe for
// concurrent use; the gorm logger picks up the handle on Open.
func (ds *DataStore) SetMetrics(m *Metrics) {
	ds.metricsMu.Lock()
	defer ds.metricsMu.Unlock()
	ds.metrics = m
}

// getMetrics returns the current metrics handle, which may be nil.
func (ds *DataStore) getMetrics() *Metrics {
	ds.metricsMu.RLock()
	defer ds.metricsMu.RUnlock()
	return ds.metrics
}
