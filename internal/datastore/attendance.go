// attendance.go: attendance ledger operations
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/campuskit/faceroll/internal/errors"
)

// CommitOutcome reports how the ledger resolved a commit attempt.
type CommitOutcome string

const (
	// AttendanceCreated means this commit inserted the day's mark.
	AttendanceCreated CommitOutcome = "created"
	// AttendanceAlreadyMarked means a mark for the person and date already
	// existed; the commit was a no-op.
	AttendanceAlreadyMarked CommitOutcome = "already_marked"
)

// Today returns the current local calendar date in ledger format.
func Today() string {
	return time.Now().Format(time.DateOnly)
}

// CommitAttendance records an attendance mark for the person on today's
// local date. Deduplication happens in the database: the insert carries an
// ON CONFLICT DO NOTHING clause against the unique (person_id, date) index,
// so of N racing commits exactly one inserts and the rest observe
// AttendanceAlreadyMarked as a normal outcome. Confidence and time are
// recorded only by the winning insert.
func (ds *DataStore) CommitAttendance(ctx context.Context, personID uint, confidence float64, mode string) (CommitOutcome, error) {
	if personID == 0 {
		return "", validationError("person id must not be zero", "person_id", personID)
	}

	now := time.Now()
	record := Attendance{
		PersonID:   personID,
		Date:       now.Format(time.DateOnly),
		Time:       now.Format(time.TimeOnly),
		Confidence: confidence,
		Mode:       mode,
	}

	start := time.Now()
	result := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "person_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(&record)

	if m := ds.getMetrics(); m != nil {
		m.RecordAttendanceOperationDuration("attendance_commit", time.Since(start).Seconds())
	}

	if result.Error != nil {
		if m := ds.getMetrics(); m != nil {
			m.RecordAttendanceOperation("attendance_commit", "error")
		}
		return "", dbError(result.Error, "attendance_commit", errors.PriorityHigh,
			"person_id", personID,
			"date", record.Date)
	}

	if result.RowsAffected == 0 {
		// Lost the race or already marked earlier today.
		if m := ds.getMetrics(); m != nil {
			m.RecordAttendanceOperation("attendance_commit", "success")
			m.IncrementAttendanceDedup()
		}
		return AttendanceAlreadyMarked, nil
	}

	if m := ds.getMetrics(); m != nil {
		m.RecordAttendanceOperation("attendance_commit", "success")
	}
	return AttendanceCreated, nil
}

// attendanceEntrySelect is the column list shared by the listing queries.
const attendanceEntrySelect = "attendances.id, attendances.person_id, attendances.date, " +
	"attendances.time, attendances.confidence, attendances.mode, " +
	"people.reg_no, people.name, people.group_tag"

// AttendanceOn returns the marks recorded on the given local date, joined
// with their people. A LEFT JOIN keeps ledger rows visible even after the
// person record is deleted.
func (ds *DataStore) AttendanceOn(ctx context.Context, date string) ([]AttendanceEntry, error) {
	var entries []AttendanceEntry
	err := ds.DB.WithContext(ctx).
		Table("attendances").
		Select(attendanceEntrySelect).
		Joins("LEFT JOIN people ON people.id = attendances.person_id").
		Where("attendances.date = ?", date).
		Order("attendances.time ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, dbError(err, "attendance_list", errors.PriorityMedium, "date", date)
	}
	return entries, nil
}

// AttendanceBetween returns the marks recorded in the inclusive date range.
func (ds *DataStore) AttendanceBetween(ctx context.Context, startDate, endDate string) ([]AttendanceEntry, error) {
	var entries []AttendanceEntry
	err := ds.DB.WithContext(ctx).
		Table("attendances").
		Select(attendanceEntrySelect).
		Joins("LEFT JOIN people ON people.id = attendances.person_id").
		Where("attendances.date >= ? AND attendances.date <= ?", startDate, endDate).
		Order("attendances.date ASC, attendances.time ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, dbError(err, "attendance_list", errors.PriorityMedium,
			"start_date", startDate,
			"end_date", endDate)
	}
	return entries, nil
}

// IsMarked reports whether the person already holds a mark for the date.
func (ds *DataStore) IsMarked(ctx context.Context, personID uint, date string) (bool, error) {
	var count int64
	err := ds.DB.WithContext(ctx).
		Model(&Attendance{}).
		Where("person_id = ? AND date = ?", personID, date).
		Count(&count).Error
	if err != nil {
		return false, dbError(err, "attendance_get", errors.PriorityMedium,
			"person_id", personID,
			"date", date)
	}
	return count > 0, nil
}

// CountOn returns the number of marks recorded on the date, feeding the HUD
// and status endpoints.
func (ds *DataStore) CountOn(ctx context.Context, date string) (int64, error) {
	var count int64
	err := ds.DB.WithContext(ctx).
		Model(&Attendance{}).
		Where("date = ?", date).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "attendance_count", errors.PriorityMedium, "date", date)
	}
	return count, nil
}
