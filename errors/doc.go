// Package errors provides the structured error type and status codes used
// throughout the OSAL.
//
// Every public OSAL API reports failure through an *Error carrying the
// failing operation (Op) and a status Code. A nil error means OK. Timeout
// is an ordinary, expected outcome of blocking calls; callers branch on it
// rather than treating it as fatal:
//
//	err := o.TakeSemaphore(sem, 50*time.Millisecond)
//	if errors.Is(err, oserr.ErrTimeout) {
//	    // nothing available yet
//	}
//
// Sentinels (ErrTimeout, ErrInvalidHandle, ...) match any error with the
// same Code via the standard errors.Is. Use the convenience constructors
// for common patterns:
//
//	err := errors.InvalidParamf("task.create", "priority %d > 31", p)
//	err := errors.Timeout("queue.receive")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
