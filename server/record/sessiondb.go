package record

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Session is one recording session, which produced one video file
type Session struct {
	BaseModel
	Path       string      `json:"path"`
	StartedAt  dbh.IntTime `json:"startedAt"`
	FinishedAt dbh.IntTime `json:"finishedAt" gorm:"default:null"` // Zero while the session is running
	Frames     int64       `json:"frames"`                         // Number of frames written
	Interval   int         `json:"interval"`                       // Record Interval at the start of the session
}

// SessionDB is a catalog of the recordings on this machine
type SessionDB struct {
	Log logs.Log
	DB  *gorm.DB
}

func NewSessionDB(log logs.Log, dbPath string) (*SessionDB, error) {
	os.MkdirAll(filepath.Dir(dbPath), 0777)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbPath), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbPath, err)
	}
	return &SessionDB{
		Log: log,
		DB:  db,
	}, nil
}

func (s *SessionDB) Close() {
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *SessionDB) StartSession(path string, startedAt time.Time, interval int) (*Session, error) {
	session := &Session{
		Path:      path,
		StartedAt: dbh.MakeIntTime(startedAt),
		Interval:  interval,
	}
	if err := s.DB.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionDB) FinishSession(session *Session, frames int64, finishedAt time.Time) error {
	session.Frames = frames
	session.FinishedAt = dbh.MakeIntTime(finishedAt)
	return s.DB.Model(session).Updates(map[string]any{
		"frames":      frames,
		"finished_at": session.FinishedAt,
	}).Error
}

// Sessions returns the most recent sessions, newest first
func (s *SessionDB) Sessions(limit int) ([]Session, error) {
	sessions := []Session{}
	if err := s.DB.Order("started_at DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
