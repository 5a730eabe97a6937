// Package logging provides structured logging for memscope.
//
// The package wraps Zap with:
//   - a custom Trace level (-2, below Debug)
//   - automatic context fields (trace_id, session.id, request.id, entity.id)
//   - field-name and pattern based secret redaction
//   - level-aware sampling (errors are never sampled)
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "turn handled", zap.String("backend", "openai"))
//
// Components that only need a plain *zap.Logger take logger.Underlying().
package logging
