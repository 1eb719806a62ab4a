package storage

import "time"

// StatsTable is the fixed-schema audit table name. One row is appended per
// (file, table-config) processing attempt, whatever the outcome.
const StatsTable = "FileProcessingStats"

// Audit column names, in table order after the autoincrementing id.
var StatsColumns = []string{
	"xml_file",
	"staging_table",
	"system_date",
	"start_time",
	"end_time",
	"record_count",
	"status",
}

// StatsRecord is one processing-attempt audit entry.
type StatsRecord struct {
	XMLFile      string
	StagingTable string
	SystemDate   time.Time // calendar date of the attempt
	StartTime    time.Time
	EndTime      time.Time
	RecordCount  int64
	Status       string
}
