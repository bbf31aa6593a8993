package main

import (
	"fmt"
	"strings"

	"github.com/campuskit/faceroll/internal/datastore"
	"gorm.io/gorm"
)

// Verifier performs post-migration verification.
type Verifier struct {
	sourceDB *gorm.DB
	targetDB *gorm.DB
}

// NewVerifier creates a new Verifier.
func NewVerifier(sourceDB, targetDB *gorm.DB) *Verifier {
	return &Verifier{
		sourceDB: sourceDB,
		targetDB: targetDB,
	}
}

// Verify performs all verification checks.
func (v *Verifier) Verify() error {
	// Count verification
	if err := v.verifyCounts(); err != nil {
		return fmt.Errorf("count verification failed: %w", err)
	}

	// Sample verification
	if err := v.verifySamples(); err != nil {
		return fmt.Errorf("sample verification failed: %w", err)
	}

	return nil
}

// verifyCounts compares record counts between source and target.
func (v *Verifier) verifyCounts() error {
	fmt.Println("\nVerifying record counts...")

	tables := []struct {
		name  string
		model any
	}{
		{"people", &datastore.Person{}},
		{"attendances", &datastore.Attendance{}},
	}

	allMatch := true
	fmt.Printf("%-20s %12s %12s %8s\n", "Table", "Source", "Target", "Match")
	fmt.Println(strings.Repeat("-", 56))

	for _, t := range tables {
		var sourceCount, targetCount int64

		if err := v.sourceDB.Model(t.model).Count(&sourceCount).Error; err != nil {
			return fmt.Errorf("failed to count source %s: %w", t.name, err)
		}

		if err := v.targetDB.Model(t.model).Count(&targetCount).Error; err != nil {
			return fmt.Errorf("failed to count target %s: %w", t.name, err)
		}

		match := "✓"
		if sourceCount != targetCount {
			match = "✗"
			allMatch = false
		}

		fmt.Printf("%-20s %12d %12d %8s\n", t.name, sourceCount, targetCount, match)
	}

	if !allMatch {
		return fmt.Errorf("record counts do not match")
	}

	fmt.Println("\nAll counts match!")
	return nil
}

// verifySamples verifies random samples from both tables.
func (v *Verifier) verifySamples() error {
	fmt.Println("\nVerifying sample records...")

	// Sample people first, their descriptors are the expensive part to lose
	if err := v.samplePeople(5); err != nil {
		return fmt.Errorf("people sampling failed: %w", err)
	}

	// Sample attendance records
	if err := v.sampleAttendances(5); err != nil {
		return fmt.Errorf("attendance sampling failed: %w", err)
	}

	fmt.Println("Sample verification passed!")
	return nil
}

// samplePeople verifies random Person records.
func (v *Verifier) samplePeople(count int) error {
	// Get random records from source
	var sourcePeople []datastore.Person
	if err := v.sourceDB.Order("RANDOM()").Limit(count).Find(&sourcePeople).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}

	if len(sourcePeople) == 0 {
		fmt.Println("  People: no records to sample")
		return nil
	}

	// Verify each in target using index to avoid copying the embedding blob
	for i := range sourcePeople {
		src := &sourcePeople[i]
		var target datastore.Person
		if err := v.targetDB.First(&target, src.ID).Error; err != nil {
			return fmt.Errorf("person ID %d not found in target: %w", src.ID, err)
		}

		// Verify critical fields
		if src.RegNo != target.RegNo {
			return fmt.Errorf("person ID %d: RegNo mismatch (%s vs %s)",
				src.ID, src.RegNo, target.RegNo)
		}
		if src.Name != target.Name {
			return fmt.Errorf("person ID %d: Name mismatch (%s vs %s)",
				src.ID, src.Name, target.Name)
		}
		if src.GroupTag != target.GroupTag {
			return fmt.Errorf("person ID %d: GroupTag mismatch (%s vs %s)",
				src.ID, src.GroupTag, target.GroupTag)
		}
		if len(src.Embedding) != len(target.Embedding) {
			return fmt.Errorf("person ID %d: embedding length mismatch (%d vs %d)",
				src.ID, len(src.Embedding), len(target.Embedding))
		}
	}

	fmt.Printf("  People: %d samples verified\n", len(sourcePeople))
	return nil
}

// sampleAttendances verifies random Attendance records.
func (v *Verifier) sampleAttendances(count int) error {
	// Get random records from source
	var sourceRecords []datastore.Attendance
	if err := v.sourceDB.Order("RANDOM()").Limit(count).Find(&sourceRecords).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}

	if len(sourceRecords) == 0 {
		fmt.Println("  Attendances: no records to sample")
		return nil
	}

	// Verify each in target
	for _, src := range sourceRecords {
		var target datastore.Attendance
		if err := v.targetDB.First(&target, src.ID).Error; err != nil {
			return fmt.Errorf("attendance ID %d not found in target: %w", src.ID, err)
		}

		// Verify critical fields
		if src.PersonID != target.PersonID {
			return fmt.Errorf("attendance ID %d: PersonID mismatch (%d vs %d)",
				src.ID, src.PersonID, target.PersonID)
		}
		if src.Date != target.Date {
			return fmt.Errorf("attendance ID %d: Date mismatch (%s vs %s)",
				src.ID, src.Date, target.Date)
		}
		if src.Mode != target.Mode {
			return fmt.Errorf("attendance ID %d: Mode mismatch (%s vs %s)",
				src.ID, src.Mode, target.Mode)
		}
		if src.Confidence != target.Confidence {
			return fmt.Errorf("attendance ID %d: Confidence mismatch (%f vs %f)",
				src.ID, src.Confidence, target.Confidence)
		}
	}

	fmt.Printf("  Attendances: %d samples verified\n", len(sourceRecords))
	return nil
}
