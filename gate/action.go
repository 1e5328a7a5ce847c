package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
	ActionList    Action = "list"
	ActionSend    Action = "send"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
)
