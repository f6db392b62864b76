package constants

// DeploymentToolLabel marks functions managed by this tool.
const DeploymentToolLabel = "deployment-tool"

// DeploymentToolValue is the label value applied to every managed function.
const DeploymentToolValue = "fnforge-cli"

// DefaultConcurrency is the per-instance request concurrency applied to gen2
// functions with enough memory, unless the caller asked for exactly 1.
const DefaultConcurrency = 80

// MinMemoryForConcurrencyMB is the smallest instance size that supports
// request concurrency greater than 1 on the gen2 platform.
const MinMemoryForConcurrencyMB = 2048

// DefaultMemoryMB is used when an endpoint does not specify a memory size.
const DefaultMemoryMB = 256

// ScheduleIDPrefix prefixes scheduler job and topic names derived from an
// endpoint so reconciliation can find them again.
const ScheduleIDPrefix = "fnforge-schedule-"

// QueueExecutorName and FunctionExecutorName identify the two quota domains
// network calls are funneled through.
const (
	QueueExecutorName    = "deployment-queue"
	FunctionExecutorName = "deployment-function"
)

// QueueExecutorConcurrency bounds fast control-plane calls (IAM, queues,
// schedules). FunctionExecutorConcurrency bounds slow function mutations so
// long builds cannot starve the control-plane domain.
const (
	QueueExecutorConcurrency    = 35
	FunctionExecutorConcurrency = 5
)
