// person.go: roster person persistence operations
package datastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campuskit/faceroll/internal/errors"
)

// NormalizeRegNo canonicalizes a registration number for storage and lookup.
// The unique index on reg_no is only meaningful if every writer agrees on
// case and surrounding whitespace.
func NormalizeRegNo(regNo string) string {
	return strings.ToUpper(strings.TrimSpace(regNo))
}

// SavePerson creates or updates a person record. The registration number is
// normalized before it hits the unique index.
func (ds *DataStore) SavePerson(ctx context.Context, person *Person) error {
	if person == nil {
		return validationError("person must not be nil", "person", nil)
	}
	person.RegNo = NormalizeRegNo(person.RegNo)
	if person.RegNo == "" {
		return validationError("registration number must not be empty", "reg_no", person.RegNo)
	}
	if strings.TrimSpace(person.Name) == "" {
		return validationError("name must not be empty", "name", person.Name)
	}

	start := time.Now()
	operation := "person_create"
	if person.ID != 0 {
		operation = "person_update"
	}

	err := ds.DB.WithContext(ctx).Save(person).Error
	if m := ds.getMetrics(); m != nil {
		m.RecordPersonOperationDuration(operation, time.Since(start).Seconds())
		if err != nil {
			m.RecordPersonOperation(operation, "error")
		} else {
			m.RecordPersonOperation(operation, "success")
		}
	}
	if err != nil {
		if isConstraintViolation(err) {
			return conflictError(err, operation, "duplicate_reg_no",
				"reg_no", person.RegNo)
		}
		return dbError(err, operation, errors.PriorityMedium,
			"reg_no", person.RegNo)
	}
	return nil
}

// GetPerson retrieves a person by primary key.
func (ds *DataStore) GetPerson(ctx context.Context, id uint) (Person, error) {
	var person Person
	if err := ds.DB.WithContext(ctx).First(&person, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Person{}, notFoundError("person", idString(id))
		}
		return Person{}, dbError(err, "person_get", errors.PriorityMedium, "person_id", id)
	}
	return person, nil
}

// GetPersonByRegNo retrieves a person by normalized registration number.
func (ds *DataStore) GetPersonByRegNo(ctx context.Context, regNo string) (Person, error) {
	normalized := NormalizeRegNo(regNo)
	if normalized == "" {
		return Person{}, validationError("registration number must not be empty", "reg_no", regNo)
	}

	var person Person
	if err := ds.DB.WithContext(ctx).Where("reg_no = ?", normalized).First(&person).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Person{}, notFoundError("person", normalized)
		}
		return Person{}, dbError(err, "person_get", errors.PriorityMedium, "reg_no", normalized)
	}
	return person, nil
}

// ListPeople returns all enrolled people ordered by id ascending, which is
// the candidate ordering the matcher's tie-break depends on.
func (ds *DataStore) ListPeople(ctx context.Context) ([]Person, error) {
	var people []Person
	if err := ds.DB.WithContext(ctx).Order("id ASC").Find(&people).Error; err != nil {
		return nil, dbError(err, "person_list", errors.PriorityMedium)
	}
	return people, nil
}

// ListGroup returns the people carrying the given group tag, ordered by id
// ascending.
func (ds *DataStore) ListGroup(ctx context.Context, groupTag string) ([]Person, error) {
	var people []Person
	err := ds.DB.WithContext(ctx).
		Where("group_tag = ?", groupTag).
		Order("id ASC").
		Find(&people).Error
	if err != nil {
		return nil, dbError(err, "person_list", errors.PriorityMedium, "group_tag", groupTag)
	}
	return people, nil
}

// SearchPeople performs a substring search over names and registration
// numbers, ordered by id ascending.
func (ds *DataStore) SearchPeople(ctx context.Context, query string) ([]Person, error) {
	var people []Person
	pattern := "%" + strings.TrimSpace(query) + "%"

	start := time.Now()
	err := ds.DB.WithContext(ctx).
		Where("name LIKE ? OR reg_no LIKE ?", pattern, pattern).
		Order("id ASC").
		Find(&people).Error
	if m := ds.getMetrics(); m != nil {
		m.RecordSearchDuration("people", time.Since(start).Seconds())
		if err != nil {
			m.RecordSearchOperation("people", "error")
		} else {
			m.RecordSearchOperation("people", "success")
			m.RecordSearchResultSize("people", len(people))
		}
	}
	if err != nil {
		return nil, dbError(err, "person_search", errors.PriorityMedium, "query", query)
	}
	return people, nil
}

// DeletePerson removes a person record. Attendance rows are retained as a
// historical ledger; listings join them with a LEFT JOIN so history outlives
// enrollment.
func (ds *DataStore) DeletePerson(ctx context.Context, id uint) error {
	result := ds.DB.WithContext(ctx).Delete(&Person{}, id)
	if m := ds.getMetrics(); m != nil {
		if result.Error != nil {
			m.RecordPersonOperation("person_delete", "error")
		} else {
			m.RecordPersonOperation("person_delete", "success")
		}
	}
	if result.Error != nil {
		return dbError(result.Error, "person_delete", errors.PriorityMedium, "person_id", id)
	}
	if result.RowsAffected == 0 {
		return notFoundError("person", idString(id))
	}
	return nil
}

// DistinctGroups returns the sorted set of non-empty group tags in use.
func (ds *DataStore) DistinctGroups(ctx context.Context) ([]string, error) {
	var groups []string
	err := ds.DB.WithContext(ctx).
		Model(&Person{}).
		Where("group_tag <> ''").
		Distinct("group_tag").
		Order("group_tag ASC").
		Pluck("group_tag", &groups).Error
	if err != nil {
		return nil, dbError(err, "group_list", errors.PriorityMedium)
	}
	return groups, nil
}

// SetEmbedding stores the serialized face descriptor for a person.
func (ds *DataStore) SetEmbedding(ctx context.Context, personID uint, embedding []byte) error {
	if len(embedding) == 0 {
		return validationError("embedding must not be empty", "embedding", len(embedding))
	}
	result := ds.DB.WithContext(ctx).
		Model(&Person{}).
		Where("id = ?", personID).
		Update("embedding", embedding)
	if result.Error != nil {
		return dbError(result.Error, "embedding_set", errors.PriorityMedium, "person_id", personID)
	}
	if result.RowsAffected == 0 {
		return notFoundError("person", idString(personID))
	}
	return nil
}

// ClearEmbedding drops the stored descriptor for a person, forcing the next
// roster load to re-derive it from the enrollment photo.
func (ds *DataStore) ClearEmbedding(ctx context.Context, personID uint) error {
	result := ds.DB.WithContext(ctx).
		Model(&Person{}).
		Where("id = ?", personID).
		Update("embedding", []byte(nil))
	if result.Error != nil {
		return dbError(result.Error, "embedding_clear", errors.PriorityMedium, "person_id", personID)
	}
	if result.RowsAffected == 0 {
		return notFoundError("person", idString(personID))
	}
	return nil
}
