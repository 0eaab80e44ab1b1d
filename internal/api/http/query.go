package httpapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const (
	queryActive     = "active"
	querySearch     = "search"
	queryPage       = "page"
	queryPageSize   = "pageSize"
	queryTurbineID  = "turbineId"
	queryFrom       = "from"
	queryTo         = "to"
	queryOutliers   = "outliers"
	queryStatus     = "status"
	queryPriority   = "priority"
	queryTurbineIDs = "turbineIds"
	queryInterval   = "interval"
)

func queryString(q url.Values, key string) string {
	return strings.TrimSpace(q.Get(key))
}

// queryBool accepts true/false, 1/0 and yes/no. A missing value yields nil.
func queryBool(q url.Values, key string) (*bool, error) {
	raw := strings.ToLower(queryString(q, key))
	var v bool
	switch raw {
	case "":
		return nil, nil
	case "true", "1", "yes":
		v = true
	case "false", "0", "no":
		v = false
	default:
		return nil, domain.NewValidationError(key, "must be a boolean")
	}
	return &v, nil
}

func queryInt(q url.Values, key string, def int) (int, error) {
	raw := queryString(q, key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(key, "must be an integer")
	}
	return v, nil
}

// queryTime parses an RFC3339 timestamp. A missing value yields the zero time.
func queryTime(q url.Values, key string) (time.Time, error) {
	raw := queryString(q, key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError(key, "must be an RFC3339 timestamp")
	}
	return t, nil
}

func queryPagination(q url.Values) (domain.Page, error) {
	number, err := queryInt(q, queryPage, 1)
	if err != nil {
		return domain.Page{}, err
	}
	if number < 1 {
		return domain.Page{}, domain.NewValidationError(queryPage, "must be at least 1")
	}
	size, err := queryInt(q, queryPageSize, domain.DefaultPageSize)
	if err != nil {
		return domain.Page{}, err
	}
	if size < 1 {
		return domain.Page{}, domain.NewValidationError(queryPageSize, "must be at least 1")
	}
	return domain.Page{Number: number, Size: size}.Normalize(), nil
}
