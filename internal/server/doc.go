// Package server implements the MCP (Model Context Protocol) surface of the
// document intake pipeline.
//
// A chat assistant drives the upload flow through four tools instead of a
// bespoke bot menu. The server speaks JSON-RPC 2.0 over stdio:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs must therefore go to stderr.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Tools
//
//   - document_upload: read one document photo (path or base64) for a session
//   - session_status: contributed documents, merged fields, next expected kind
//   - session_contact: attach a contact name and phone to the record
//   - record_retry_export: retry a failed workflow board export
//
// # Argument Validation
//
// Every tool publishes a JSON Schema in tools/list. Arguments are validated
// against the compiled schema before the tool runs; violations are reported
// as -32602 Invalid params and never reach the pipeline.
//
// # Error Handling
//
// Pipeline failures return a -32000 error whose data is a ToolError:
//   - code: short label such as "missing_identity" or "ocr_empty"
//   - message: text suitable for the uploader
//   - retryable: whether resending the same request may succeed
//   - detail: the full Go error chain
//
// # Usage
//
//	srv, err := server.New(svc, server.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
