package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Reads on the Repository itself take no lock. Read-modify-write sequences
// must run inside InTx and read through Tx.FindByIDForUpdate.
type Repository interface {
	// FindByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Device, error)

	// FindAll retrieves a page of all devices in insertion order.
	FindAll(ctx context.Context, page PageRequest) (*Page, error)

	// FindByBrand retrieves a page of devices with exactly the given brand.
	FindByBrand(ctx context.Context, brand string, page PageRequest) (*Page, error)

	// FindByState retrieves a page of devices in the given state.
	FindByState(ctx context.Context, state State, page PageRequest) (*Page, error)

	// InTx runs fn inside a write transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the unit of work handed to Repository.InTx.
type Tx interface {
	// FindByIDForUpdate reads a device while holding the write lock until
	// the transaction ends. Returns ErrDeviceNotFound if absent.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Device, error)

	// Save inserts the device or overwrites name, brand and state of an
	// existing row with the same ID. CreationTime is never overwritten.
	Save(ctx context.Context, device *Device) error

	// DeleteByID removes the device and its state history.
	// Returns ErrDeviceNotFound if the device does not exist.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// RecordStateChange appends an entry to the device's state history.
	RecordStateChange(ctx context.Context, change StateChange) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const deviceColumns = `id, name, brand, state, creation_time`

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository implements Repository using SQLite.
//
// Write transactions rely on the connection being opened with
// _txlock=immediate so that BEGIN takes the database write lock. A second
// writer blocks (up to the busy timeout) until the first commits.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// FindByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) FindByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	return findByID(ctx, r.db, id)
}

// FindAll retrieves a page of all devices.
func (r *SQLiteRepository) FindAll(ctx context.Context, page PageRequest) (*Page, error) {
	return r.queryPage(ctx, page, "", nil)
}

// FindByBrand retrieves a page of devices matching brand exactly.
func (r *SQLiteRepository) FindByBrand(ctx context.Context, brand string, page PageRequest) (*Page, error) {
	return r.queryPage(ctx, page, "WHERE brand = ?", []any{brand})
}

// FindByState retrieves a page of devices in the given state.
func (r *SQLiteRepository) FindByState(ctx context.Context, state State, page PageRequest) (*Page, error) {
	return r.queryPage(ctx, page, "WHERE state = ?", []any{string(state)})
}

// InTx runs fn inside a single transaction.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(&sqliteTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// queryPage runs a count and a limited select sharing the same WHERE clause.
func (r *SQLiteRepository) queryPage(ctx context.Context, page PageRequest, where string, args []any) (*Page, error) {
	var total int64
	countQuery := "SELECT COUNT(*) FROM devices " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting devices: %w", err)
	}

	query := "SELECT " + deviceColumns + " FROM devices " + where + " ORDER BY seq LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), page.Size, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	items := make([]Device, 0, page.Size)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return &Page{
		Items:      items,
		Number:     page.Number,
		Size:       page.Size,
		TotalItems: total,
	}, nil
}

// sqliteTx implements Tx on top of *sql.Tx.
type sqliteTx struct {
	q querier
}

// FindByIDForUpdate reads the device inside the write transaction.
// SQLite has no row locks; the transaction already holds the database
// write lock, which covers the row.
func (t *sqliteTx) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Device, error) {
	return findByID(ctx, t.q, id)
}

// Save upserts the device by ID.
func (t *sqliteTx) Save(ctx context.Context, device *Device) error {
	query := `
		INSERT INTO devices (id, name, brand, state, creation_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			brand = excluded.brand,
			state = excluded.state`

	_, err := t.q.ExecContext(ctx, query,
		device.ID.String(),
		device.Name,
		device.Brand,
		string(device.State),
		formatTime(device.CreationTime),
	)
	if err != nil {
		return fmt.Errorf("saving device: %w", err)
	}
	return nil
}

// DeleteByID removes a device and its history rows.
func (t *sqliteTx) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if _, err := t.q.ExecContext(ctx, "DELETE FROM device_state_history WHERE device_id = ?", id.String()); err != nil {
		return fmt.Errorf("deleting state history: %w", err)
	}

	result, err := t.q.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// RecordStateChange inserts a state history row.
func (t *sqliteTx) RecordStateChange(ctx context.Context, change StateChange) error {
	var from any
	if change.From != nil {
		from = string(*change.From)
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO device_state_history (device_id, previous_state, state, changed_at)
		 VALUES (?, ?, ?, ?)`,
		change.DeviceID.String(),
		from,
		string(change.To),
		formatTime(change.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// findByID is shared by the locked and unlocked read paths.
func findByID(ctx context.Context, q querier, id uuid.UUID) (*Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices WHERE id = ?"

	d, err := scanDevice(q.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row into a Device.
func scanDevice(row rowScanner) (*Device, error) {
	var (
		d            Device
		id           string
		state        string
		creationTime string
	)

	if err := row.Scan(&id, &d.Name, &d.Brand, &state, &creationTime); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing device id %q: %w", id, err)
	}
	d.ID = parsedID

	d.State, err = ParseState(state)
	if err != nil {
		return nil, fmt.Errorf("parsing state of device %s: %w", id, err)
	}

	d.CreationTime, err = parseTime(creationTime)
	if err != nil {
		return nil, fmt.Errorf("parsing creation_time of device %s: %w", id, err)
	}

	return &d, nil
}

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
