// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation type constants used in switch statements across metrics.
// These constants define the categories of operations that can be recorded.
const (
	// OpDetection represents face detection operations.
	OpDetection = "detection"
	// OpEmbedding represents face embedding computation operations.
	OpEmbedding = "embedding"
	// OpModelLoad represents model loading operations.
	OpModelLoad = "model_load"
	// OpFrameProcess represents frame processing operations.
	OpFrameProcess = "frame_process"
	// OpMatch represents candidate matching operations.
	OpMatch = "match"
	// OpAttendanceCreate represents attendance record creation operations.
	OpAttendanceCreate = "attendance_create"
	// OpAttendanceUpdate represents attendance record update operations.
	OpAttendanceUpdate = "attendance_update"
	// OpAttendanceDelete represents attendance record deletion operations.
	OpAttendanceDelete = "attendance_delete"
	// OpAttendanceGet represents attendance record retrieval operations.
	OpAttendanceGet = "attendance_get"
	// OpPersonCreate represents person record creation operations.
	OpPersonCreate = "person_create"
	// OpPersonUpdate represents person record update operations.
	OpPersonUpdate = "person_update"
	// OpPersonDelete represents person record deletion operations.
	OpPersonDelete = "person_delete"
	// OpPersonGet represents person record retrieval operations.
	OpPersonGet = "person_get"
	// OpDbQuery represents database query operations.
	OpDbQuery = "db_query"
	// OpDbInsert represents database insert operations.
	OpDbInsert = "db_insert"
	// OpDbUpdate represents database update operations.
	OpDbUpdate = "db_update"
	// OpDbDelete represents database delete operations.
	OpDbDelete = "db_delete"
	// OpTransaction represents database transaction operations.
	OpTransaction = "transaction"
	// OpSearch represents search operations.
	OpSearch = "search"
	// OpCacheGet represents cache get operations.
	OpCacheGet = "cache_get"
	// OpCacheSet represents cache set operations.
	OpCacheSet = "cache_set"
	// OpCacheDelete represents cache delete operations.
	OpCacheDelete = "cache_delete"
	// OpMaintenance represents maintenance operations.
	OpMaintenance = "maintenance"
)

// Label value constants used for metric labels.
const (
	// LabelDlib is the model label value for the dlib recognizer.
	LabelDlib = "dlib"
	// LabelQuery is the operation label for query operations.
	LabelQuery = "query"
	// LabelCommit is the operation label for commit operations.
	LabelCommit = "commit"
	// LabelGet is the operation label for get operations.
	LabelGet = "get"
	// LabelCreate is the operation label for create operations.
	LabelCreate = "create"
	// LabelUpdate is the operation label for update operations.
	LabelUpdate = "update"
	// LabelVacuum is the operation label for vacuum operations.
	LabelVacuum = "vacuum"
	// LabelRoster is the cache type label for the roster cache.
	LabelRoster = "roster"
)

// Histogram bucket configuration constants.
// These define the base values and factors for exponential/linear bucket generation.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart1s is the starting bucket for 1s histograms (1s to hours range).
	BucketStart1s = 1.0
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0
	// BucketStart100B is the starting bucket for 100 byte histograms (100B to ~100MB range).
	BucketStart100B = 100.0
	// BucketStart1KB is the starting bucket for 1KB histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount8 defines 8 exponential buckets.
	BucketCount8 = 8
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// Time and conversion constants.
const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
	// MillisecondsPerSecond is the conversion factor from seconds to milliseconds.
	MillisecondsPerSecond = 1000.0
	// PercentageFactor is the multiplier to convert ratio to percentage.
	PercentageFactor = 100.0
)

// String parsing constants.
const (
	// SplitPartsCount is the expected number of parts when splitting operation strings.
	SplitPartsCount = 2
)
