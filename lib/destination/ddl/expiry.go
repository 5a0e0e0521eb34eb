package ddl

import (
	"strconv"
	"strings"
	"time"
)

// ShouldDeleteFromName reports whether the expiry suffix of a staging table name is in the past.
func ShouldDeleteFromName(name string, now time.Time) bool {
	if !IsStagingTable(name) {
		return false
	}

	nameParts := strings.Split(name, "_")
	unix, err := strconv.ParseInt(nameParts[len(nameParts)-1], 10, 64)
	if err != nil {
		return false
	}

	return now.After(time.Unix(unix, 0))
}
