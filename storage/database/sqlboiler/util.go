package boiledrepos

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// orderBy renders the ORDER BY clause of the allowed orderings, or def.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, def string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return def
	}
	return strings.Join(orderList, ", ")
}
