// Package retry runs an operation repeatedly while its failures are classified
// as transient.
//
// The deletion engine uses Immediate so that retries never spend extra rate
// budget waiting; page navigation uses DefaultConfig with exponential backoff.
//
//	err := retry.Do(func(attempt int) error {
//		_, err := handler.Delete(ctx, page, item)
//		return err
//	}, retry.Immediate(3))
//	if errors.Is(err, retry.ErrMaxAttempts) { ... }
package retry
