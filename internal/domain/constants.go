package domain

const (
	DefaultAPIBaseURL         = "http://localhost:8080/api"
	DefaultAPITimeoutSeconds  = 10
	DefaultPageSize           = 10
	MaxPageSize               = 100
	DefaultToolPageSize       = 50
	DefaultTreePageSize       = MaxPageSize
	DefaultOrderBy            = SortCreatedAt
	DefaultOrderDir           = SortDesc
	DefaultWatchIntervalSecs  = 30
	DefaultLogLevel           = "info"
	DefaultCacheFileName      = "view.db"
	RequestIDHeader           = "x-request-id"
	UncategorizedDisplayLabel = "(uncategorized)"
)
