package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
	"github.com/ironsheep/doc-intake-mcp/internal/intake"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "document_upload").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolError is the data attached to a failed tool call.
type ToolError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Detail    string `json:"detail"`
}

// handleToolsCall validates the arguments against the tool's schema and
// executes it.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Schema violations return -32602. Pipeline failures return -32000 with a
// ToolError whose message can be shown to the uploader as is.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	schema, ok := s.schemas[params.Name]
	if !ok {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", fmt.Sprintf("unknown tool: %s", params.Name))
	}
	if err := validateArgs(schema, params.Arguments); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, codeToolFailed, "Tool execution failed", ToolError{
			Code:      intake.Code(err),
			Message:   intake.UserMessage(err),
			Retryable: intake.Retryable(err),
			Detail:    err.Error(),
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case "document_upload":
		return s.handleDocumentUpload(ctx, args)
	case "session_status":
		return s.handleSessionStatus(ctx, args)
	case "session_contact":
		return s.handleSessionContact(ctx, args)
	case "record_retry_export":
		return s.handleRecordRetryExport(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type documentUploadArgs struct {
	SessionID   string `json:"session_id"`
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

// uploadResult adds the prompt for the next step to an upload result.
type uploadResult struct {
	*intake.Result
	Message string `json:"message"`
}

func (s *Server) handleDocumentUpload(ctx context.Context, args json.RawMessage) (any, error) {
	var a documentUploadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	var data []byte
	var err error
	if a.Path != "" {
		data, err = imaging.ReadFile(a.Path)
		if err != nil {
			err = fmt.Errorf("%w: %w", intake.ErrDecode, err)
		}
	} else {
		data, err = base64.StdEncoding.DecodeString(a.ImageBase64)
		if err != nil {
			err = fmt.Errorf("%w: image_base64: %v", intake.ErrDecode, err)
		}
	}
	if err != nil {
		s.logger.Warn("upload unreadable",
			"session_id", a.SessionID, "kind", a.Kind, "code", intake.Code(err), "err", err)
		return nil, err
	}

	res, err := s.intake.HandleUpload(ctx, a.SessionID, a.Kind, data)
	if err != nil {
		return nil, err
	}
	return uploadResult{Result: res, Message: nextPrompt(res)}, nil
}

// nextPrompt tells the uploader what to send next.
func nextPrompt(res *intake.Result) string {
	received := fmt.Sprintf("Your %s has been received.", res.Kind.Label())
	switch {
	case res.ExportError != "":
		return received + " " + res.ExportError
	case res.Next != "":
		return fmt.Sprintf("%s Please upload your %s next.", received, res.Next.Label())
	case res.Exported:
		return received + " All documents are complete and have been submitted."
	}
	return received + " All documents are complete."
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleSessionStatus(ctx context.Context, args json.RawMessage) (any, error) {
	var a sessionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.intake.Status(ctx, a.SessionID)
}

type sessionContactArgs struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
}

func (s *Server) handleSessionContact(ctx context.Context, args json.RawMessage) (any, error) {
	var a sessionContactArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.intake.SetContact(ctx, a.SessionID, document.Contact{Name: a.Name, Phone: a.Phone})
}

type retryExportArgs struct {
	PersonKey string `json:"person_key"`
}

func (s *Server) handleRecordRetryExport(ctx context.Context, args json.RawMessage) (any, error) {
	var a retryExportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.intake.RetryExport(ctx, a.PersonKey)
}
