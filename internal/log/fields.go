package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldPartition     = "partition"
	FieldTransactionID = "transaction_id"
	FieldKind          = "kind"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldRate          = "rate"
	FieldCategory      = "category"
	FieldGoal          = "goal"
	FieldPerson        = "person"
	FieldObligation    = "obligation"
	FieldReporter      = "reporter"
	FieldEvent         = "event"
	FieldToken         = "token"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentPartition = "partition"
	ComponentCurrency  = "currency"
	ComponentBudget    = "budget"
	ComponentSavings   = "savings"
	ComponentDebt      = "debt"
	ComponentRecurring = "recurring"
	ComponentGamify    = "gamify"
	ComponentSession   = "session"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpAppend   = "append"
	OpMigrate  = "migrate"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
