package constants

const (
	DefaultRecentProductsLimit int = 4
	DefaultProductCategory         = "general"
)

// for api auth
type ContextKey string

const (
	AuthorizationHeaderKey  ContextKey = "authorization"
	AuthorizationTypeBearer ContextKey = "bearer"
	AuthorizationIdentity   ContextKey = "authorization_identity"
	SessionIDHeader                    = "X-Session-ID"
)

type ENV string

const (
	Debug ENV = "debug"
	Dev   ENV = "development"
	Stag  ENV = "staging"
	Prod  ENV = "production"
)

type RequestID string

const (
	RequestIDKey    RequestID = "request_id"
	RequestIDHeader           = "X-Request-ID"
)

type StoreDriver string

const (
	StoreDriverMemory   StoreDriver = "memory"
	StoreDriverRedis    StoreDriver = "redis"
	StoreDriverPostgres StoreDriver = "postgres"
)

func IsValidStoreDriver(driver string) bool {
	switch StoreDriver(driver) {
	case StoreDriverMemory, StoreDriverRedis, StoreDriverPostgres:
		return true
	default:
		return false
	}
}

type AuthDriver string

const (
	AuthDriverStatic AuthDriver = "static"
	AuthDriverRedis  AuthDriver = "redis"
)

func IsValidAuthDriver(driver string) bool {
	switch AuthDriver(driver) {
	case AuthDriverStatic, AuthDriverRedis:
		return true
	default:
		return false
	}
}
