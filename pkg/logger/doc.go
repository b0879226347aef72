// Package logger builds *slog.Logger values for taskq binaries.
//
// New applies a list of Option values and returns a logger whose handler is
// wrapped in LogHandlerDecorator, so attributes registered through
// WithContextExtractors or WithContextValue are pulled from the context of
// every record. The worker uses this to tag handler logs with the task being
// processed.
//
//	log := logger.New(logger.FromConfig(cfg)...)
//	logger.SetAsDefault(log)
//	log.InfoContext(ctx, "task finished",
//	    logger.TaskID(task.ID),
//	    logger.TaskName(task.Name()),
//	    logger.Duration(time.Since(start)),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
