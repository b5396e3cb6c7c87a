// Package datalog records range samples into a sqlite database as they are
// produced.
package datalog

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	SampleTable = "samples"

	queueSize = 10240
)

var ErrClosed = errors.New("datalog: closed")

// SampleRow is one logged frame.
type SampleRow struct {
	Timestamp      int64 // unix milliseconds
	Distance       int
	SignalStrength int
	Filtered       float64
	Status         string
	Error          string
}

type dataLogRow struct {
	tbl  string
	data interface{}
}

// Writer queues rows and inserts them from its own goroutine so that the
// caller never waits on the disk. Rows are dropped when the queue is full.
type Writer struct {
	db     *sql.DB
	rows   chan dataLogRow
	done   chan struct{}
	log    *zap.SugaredLogger
	tables map[string][]column

	closed  atomic.Bool
	dropped atomic.Uint64
	written atomic.Uint64
}

func Open(path string, log *zap.SugaredLogger) (*Writer, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open(): %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql.Open(): %w", err)
	}

	w := &Writer{
		db:     db,
		rows:   make(chan dataLogRow, queueSize),
		done:   make(chan struct{}),
		log:    log,
		tables: make(map[string][]column),
	}
	go w.dataLogWriter()
	return w, nil
}

// Log queues data, a struct value, for insertion into tbl. It returns false
// when the row was dropped.
func (w *Writer) Log(tbl string, data interface{}) bool {
	if w.closed.Load() {
		return false
	}
	select {
	case w.rows <- dataLogRow{tbl: tbl, data: data}:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

func (w *Writer) LogSample(row SampleRow) bool {
	return w.Log(SampleTable, row)
}

// Dropped is the number of rows lost to a full queue.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Written is the number of rows inserted.
func (w *Writer) Written() uint64 { return w.written.Load() }

// Close flushes queued rows and closes the database. Log must not be
// called concurrently with Close.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return ErrClosed
	}
	close(w.rows)
	<-w.done
	return w.db.Close()
}

func (w *Writer) dataLogWriter() {
	defer close(w.done)
	for r := range w.rows {
		if err := w.insert(r.tbl, r.data); err != nil {
			w.log.Warnf("Datalog Error: %s", err)
		}
	}
}

func (w *Writer) insert(tbl string, data interface{}) error {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("can't log %T into %s", data, tbl)
	}

	cols, ok := w.tables[tbl]
	if !ok {
		cols = columns(val.Type())
		if _, err := w.db.Exec(createStatement(tbl, cols)); err != nil {
			return err
		}
		w.tables[tbl] = cols
	}

	if _, err := w.db.Exec(insertStatement(tbl, cols), marshalRow(val, cols)...); err != nil {
		return err
	}
	w.written.Add(1)
	return nil
}

// ReadSamples loads every logged sample from the database at path, oldest
// first.
func ReadSamples(path string) ([]SampleRow, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT Timestamp, Distance, SignalStrength, Filtered, Status, Error FROM " + SampleTable + " ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SampleRow
	for rows.Next() {
		var r SampleRow
		if err := rows.Scan(&r.Timestamp, &r.Distance, &r.SignalStrength, &r.Filtered, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
