package constants

import "time"

// FunctionOperationTimeout is the master timeout for polling a function
// create/update/delete operation. It matches the platform's documented
// maximum build duration.
const FunctionOperationTimeout = 25 * time.Minute

// FunctionPollMaxBackoff caps the interval between operation polls.
const FunctionPollMaxBackoff = 10 * time.Second

// FunctionPollInitialBackoff is the first poll interval for a freshly
// submitted operation.
const FunctionPollInitialBackoff = 2 * time.Second

// ExecutorMaxAttempts is how many times an executor runs a task before
// giving up on transient failures.
const ExecutorMaxAttempts = 5

// ExecutorInitialBackoff is the delay before the first retry of a task that
// failed transiently.
const ExecutorInitialBackoff = 200 * time.Millisecond

// ExecutorMaxBackoff caps the retry delay between task attempts.
const ExecutorMaxBackoff = 20 * time.Second
