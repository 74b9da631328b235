// Package telemetry is a string-keyed key/value store, namespaced into tables,
// through which the pipeline talks to the robot and to the operator's dashboard.
package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrWrongType = errors.New("telemetry value has a different type")

type ValueType string

const (
	TypeString      ValueType = "string"
	TypeNumber      ValueType = "number"
	TypeBoolean     ValueType = "boolean"
	TypeStringArray ValueType = "stringArray"
)

// Value is a single typed entry in a table. Exactly one of the fields is meaningful, according to Type.
type Value struct {
	Type        ValueType `json:"type"`
	String      string    `json:"string,omitempty"`
	Number      float64   `json:"number,omitempty"`
	Boolean     bool      `json:"boolean,omitempty"`
	StringArray []string  `json:"stringArray,omitempty"`
}

// Change is sent to subscribers whenever a key is written
type Change struct {
	Table string `json:"table"`
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Table is the interface that the pipeline uses.
// Puts return an error if the key already holds a value of a different type.
// Gets return def if the key is missing, or holds a value of a different type.
type Table interface {
	PutString(key, value string) error
	PutNumber(key string, value float64) error
	PutBoolean(key string, value bool) error
	PutStringArray(key string, value []string) error
	GetString(key, def string) string
	GetNumber(key string, def float64) float64
	GetBoolean(key string, def bool) bool
	GetStringArray(key string, def []string) []string
}

// Store holds all tables in memory
type Store struct {
	lock        sync.RWMutex
	tables      map[string]map[string]Value
	subscribers map[chan Change]string // channel -> table name ("" for all tables)
}

func NewStore() *Store {
	return &Store{
		tables:      map[string]map[string]Value{},
		subscribers: map[chan Change]string{},
	}
}

// Table returns a handle to the named table. The table is created on first write.
// Sub tables are named with a slash, eg "CameraPublisher/Jetson".
func (s *Store) Table(name string) *StoreTable {
	return &StoreTable{store: s, name: name}
}

// TableNames returns the names of all tables that have at least one key
func (s *Store) TableNames() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the table
func (s *Store) Snapshot(table string) map[string]Value {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := map[string]Value{}
	for k, v := range s.tables[table] {
		out[k] = v
	}
	return out
}

// Subscribe returns a channel that receives changes to table (or to all tables, if table is "").
// Changes are dropped if the subscriber does not keep up, so that a slow dashboard
// can never block the frame loop.
func (s *Store) Subscribe(table string, bufferSize int) chan Change {
	ch := make(chan Change, bufferSize)
	s.lock.Lock()
	s.subscribers[ch] = table
	s.lock.Unlock()
	return ch
}

func (s *Store) Unsubscribe(ch chan Change) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Store) put(table, key string, v Value) error {
	return s.write(table, key, v, false)
}

// Set writes a value of any type, replacing a value of a different type.
// This is used by the HTTP API, where the writer is the authority on the type.
func (s *Store) Set(table, key string, v Value) error {
	return s.write(table, key, v, true)
}

func (s *Store) write(table, key string, v Value, replaceType bool) error {
	if key == "" {
		return fmt.Errorf("Empty telemetry key in table '%v'", table)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	t := s.tables[table]
	if t == nil {
		t = map[string]Value{}
		s.tables[table] = t
	}
	if existing, ok := t[key]; ok && existing.Type != v.Type && !replaceType {
		return fmt.Errorf("%w: %v/%v is %v, not %v", ErrWrongType, table, key, existing.Type, v.Type)
	}
	t[key] = v
	change := Change{Table: table, Key: key, Value: v}
	for ch, filter := range s.subscribers {
		if filter != "" && filter != table {
			continue
		}
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (s *Store) get(table, key string, typ ValueType) (Value, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.tables[table][key]
	if !ok || v.Type != typ {
		return Value{}, false
	}
	return v, true
}

// StoreTable implements Table over a Store
type StoreTable struct {
	store *Store
	name  string
}

func (t *StoreTable) Name() string {
	return t.name
}

// SubTable returns the table "<this>/<name>"
func (t *StoreTable) SubTable(name string) *StoreTable {
	return t.store.Table(strings.TrimSuffix(t.name, "/") + "/" + name)
}

func (t *StoreTable) PutString(key, value string) error {
	return t.store.put(t.name, key, Value{Type: TypeString, String: value})
}

func (t *StoreTable) PutNumber(key string, value float64) error {
	return t.store.put(t.name, key, Value{Type: TypeNumber, Number: value})
}

func (t *StoreTable) PutBoolean(key string, value bool) error {
	return t.store.put(t.name, key, Value{Type: TypeBoolean, Boolean: value})
}

func (t *StoreTable) PutStringArray(key string, value []string) error {
	cp := append([]string{}, value...)
	return t.store.put(t.name, key, Value{Type: TypeStringArray, StringArray: cp})
}

func (t *StoreTable) GetString(key, def string) string {
	if v, ok := t.store.get(t.name, key, TypeString); ok {
		return v.String
	}
	return def
}

func (t *StoreTable) GetNumber(key string, def float64) float64 {
	if v, ok := t.store.get(t.name, key, TypeNumber); ok {
		return v.Number
	}
	return def
}

func (t *StoreTable) GetBoolean(key string, def bool) bool {
	if v, ok := t.store.get(t.name, key, TypeBoolean); ok {
		return v.Boolean
	}
	return def
}

func (t *StoreTable) GetStringArray(key string, def []string) []string {
	if v, ok := t.store.get(t.name, key, TypeStringArray); ok {
		return append([]string{}, v.StringArray...)
	}
	return def
}
