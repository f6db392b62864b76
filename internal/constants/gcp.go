package constants

// IAM roles granted while wiring triggers and invokers.
const (
	RoleCloudFunctionsInvoker = "roles/cloudfunctions.invoker"
	RoleRunInvoker            = "roles/run.invoker"
	RoleTasksEnqueuer         = "roles/cloudtasks.enqueuer"
)

// MemberAllUsers grants public access when bound to an invoker role.
const MemberAllUsers = "allUsers"

// Invoker spellings accepted on an endpoint. Anything else is treated as a
// service account email.
const (
	InvokerPublic  = "public"
	InvokerPrivate = "private"
)

// Blocking trigger event types supported by the identity backend.
const (
	BeforeCreateEvent = "beforeCreate"
	BeforeSignInEvent = "beforeSignIn"
)
