// Package logx configures the collector's structured logging.
//
// A small wrapper (logx.Logger) over zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Loggers valid across runtime reconfiguration (Service.Apply)
//
// Logs always go to stderr; stdout is reserved for emitted records.
package logx
