package project_test

import (
	"strconv"

	"github.com/frahmantamala/datashare/internal/gateway"
)

func gatewayCounts(columns, rows int) gateway.Counts {
	return gateway.Counts{Columns: columns, Rows: rows}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
