package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldCommand     = "command"
	FieldChatID      = "chat_id"
	FieldUserID      = "user_id"
	FieldMember      = "member"
	FieldBalance     = "balance"
	FieldAmountCents = "amount_cents"
	FieldBackend     = "backend"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBot       = "bot"
	ComponentLedger    = "ledger"
	ComponentScheduler = "scheduler"
	ComponentTelegram  = "telegram"
	ComponentEvents    = "events"
)
