// Package logging provides structured JSON logging for the lock registry
// and its command-line caller.
//
// [Logger] wraps log/slog with a JSON handler. Child loggers created with
// [Logger.WithScope], [Logger.WithOwner] or [Logger.With] carry their
// attributes on every entry:
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithScope("/src/repo").WithOwner("agent-7").Info("lock acquired", "file", "main.go")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"lock acquired","scope":"/src/repo","owner":"agent-7","file":"main.go"}
//
// Use [NopLogger] in tests or when logging is disabled. All types are safe
// for concurrent use.
package logging
