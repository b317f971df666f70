package constants

import "github.com/go-playground/validator/v10"

type ContextKey string

const (
	TxKey     ContextKey = "tx"
	PoolKey   ContextKey = "pool"
	LoggerKey ContextKey = "logger"
	RunIDKey  ContextKey = "run_id"
)

// DateLayout is the textual form of calendar dates at every boundary.
const DateLayout = "2006-01-02"

// Validate is the shared validator instance; packages register their custom
// tags on it at init.
var Validate = validator.New(validator.WithRequiredStructEnabled())
