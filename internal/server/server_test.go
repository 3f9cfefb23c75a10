package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
	"github.com/ironsheep/doc-intake-mcp/internal/correlate"
	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/intake"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type uploadCall struct {
	sessionID string
	kind      string
	data      []byte
}

type fakeIntake struct {
	uploads  []uploadCall
	result   *intake.Result
	err      error
	contacts []document.Contact
	retried  []string
}

func (f *fakeIntake) HandleUpload(_ context.Context, sessionID, kind string, data []byte) (*intake.Result, error) {
	f.uploads = append(f.uploads, uploadCall{sessionID, kind, data})
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeIntake) Status(_ context.Context, sessionID string) (*intake.SessionStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &intake.SessionStatus{
		SessionID: sessionID,
		PersonKey: "john_doe",
		State:     document.StateAwaitingLicense,
		Next:      document.KindDriversLicense,
	}, nil
}

func (f *fakeIntake) SetContact(ctx context.Context, sessionID string, c document.Contact) (*intake.SessionStatus, error) {
	f.contacts = append(f.contacts, c)
	return f.Status(ctx, sessionID)
}

func (f *fakeIntake) RetryExport(_ context.Context, key string) (*intake.ExportResult, error) {
	f.retried = append(f.retried, key)
	if f.err != nil {
		return nil, f.err
	}
	return &intake.ExportResult{PersonKey: correlate.PersonKey(key), Exported: true}, nil
}

type response struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

// exchange feeds lines to a fresh server and returns its responses.
func exchange(t *testing.T, svc Intake, lines ...string) []response {
	t.Helper()
	return exchangeLogged(t, svc, quiet, lines...)
}

func exchangeLogged(t *testing.T, svc Intake, logger *slog.Logger, lines ...string) []response {
	t.Helper()
	var out bytes.Buffer
	srv, err := New(svc, WithLogger(logger), WithIO(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out), WithVersion("1.2.3"))
	require.NoError(t, err)
	require.NoError(t, srv.Run(context.Background()))

	var resps []response
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r), sc.Text())
		resps = append(resps, r)
	}
	return resps
}

func call(id int, tool string, args any) string {
	b, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
	return string(b)
}

// toolText unwraps the JSON text content of a successful tool call.
func toolText(t *testing.T, r response) map[string]any {
	t.Helper()
	require.Nil(t, r.Error)
	var res struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(r.Result, &res))
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	return out
}

func toolError(t *testing.T, r response) ToolError {
	t.Helper()
	require.NotNil(t, r.Error)
	require.Equal(t, codeToolFailed, r.Error.Code)
	var te ToolError
	require.NoError(t, json.Unmarshal(r.Error.Data, &te))
	return te
}

func TestRun_Protocol(t *testing.T) {
	resps := exchange(t, &fakeIntake{},
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":"p","method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`not json`,
	)
	require.Len(t, resps, 5)

	var init struct {
		ServerInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(resps[0].Result, &init))
	assert.Equal(t, "doc-intake-mcp", init.ServerInfo.Name)
	assert.Equal(t, "1.2.3", init.ServerInfo.Version)

	var list struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resps[1].Result, &list))
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"document_upload", "session_status", "session_contact", "record_retry_export"}, names)

	assert.Equal(t, "p", resps[2].ID)
	assert.Nil(t, resps[2].Error)

	require.NotNil(t, resps[3].Error)
	assert.Equal(t, codeMethodNotFound, resps[3].Error.Code)

	require.NotNil(t, resps[4].Error)
	assert.Equal(t, codeParseError, resps[4].Error.Code)
}

func TestRun_CancelledContext(t *testing.T) {
	srv, err := New(&fakeIntake{}, WithLogger(quiet),
		WithIO(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, srv.Run(ctx), context.Canceled)
}

func TestDocumentUpload_Base64(t *testing.T) {
	svc := &fakeIntake{result: &intake.Result{
		SessionID: "chat-1",
		Kind:      document.KindIdentityCard,
		PersonKey: "john_doe",
		Fields:    map[string]string{document.FieldName: "JOHN DOE"},
		State:     document.StateAwaitingLicense,
		Next:      document.KindDriversLicense,
		Status:    aggregate.StatusPending,
	}}
	payload := []byte("\x89PNG fake")

	resps := exchange(t, svc, call(1, "document_upload", map[string]any{
		"session_id":   "chat-1",
		"kind":         "identity_card",
		"image_base64": base64.StdEncoding.EncodeToString(payload),
	}))
	require.Len(t, resps, 1)

	out := toolText(t, resps[0])
	assert.Equal(t, "john_doe", out["person_key"])
	assert.Equal(t, "awaiting_license", out["state"])
	assert.Equal(t, "drivers_license", out["next"])
	assert.Equal(t, "Your identity card has been received. Please upload your driver's license next.", out["message"])

	require.Len(t, svc.uploads, 1)
	assert.Equal(t, uploadCall{"chat-1", "identity_card", payload}, svc.uploads[0])
}

func TestDocumentUpload_Path(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, tinyPNG(t), 0o600))

	svc := &fakeIntake{result: &intake.Result{Kind: document.KindLogCard, State: document.StateComplete, Exported: true}}
	resps := exchange(t, svc, call(1, "document_upload", map[string]any{
		"session_id": "chat-1",
		"kind":       "log_card",
		"path":       path,
	}))

	out := toolText(t, resps[0])
	assert.Equal(t, true, out["exported"])
	assert.Contains(t, out["message"], "submitted")
	require.Len(t, svc.uploads, 1)
	assert.NotEmpty(t, svc.uploads[0].data)
}

func TestDocumentUpload_UnreadableInput(t *testing.T) {
	svc := &fakeIntake{}
	resps := exchange(t, svc,
		call(1, "document_upload", map[string]any{"session_id": "s", "kind": "log_card", "image_base64": "***"}),
		call(2, "document_upload", map[string]any{"session_id": "s", "kind": "log_card", "path": "/nonexistent/card.png"}),
	)
	require.Len(t, resps, 2)
	for _, r := range resps {
		te := toolError(t, r)
		assert.Equal(t, "decode", te.Code)
		assert.NotEmpty(t, te.Message)
	}
	assert.Empty(t, svc.uploads)
}

func TestDocumentUpload_UnreadableInputIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	resps := exchangeLogged(t, &fakeIntake{}, logger,
		call(1, "document_upload", map[string]any{"session_id": "chat-7", "kind": "identity_card", "path": "/nonexistent/card.png"}),
	)
	require.Len(t, resps, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry), logs.String())
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "upload unreadable", entry["msg"])
	assert.Equal(t, "chat-7", entry["session_id"])
	assert.Equal(t, "identity_card", entry["kind"])
	assert.Equal(t, "decode", entry["code"])
	assert.Contains(t, entry["err"], "card.png")
}

func TestToolsCall_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args any
	}{
		{"unknown tool", "image_crop", map[string]any{}},
		{"missing session", "document_upload", map[string]any{"kind": "log_card", "path": "/a.png"}},
		{"empty session", "session_status", map[string]any{"session_id": ""}},
		{"unknown kind", "document_upload", map[string]any{"session_id": "s", "kind": "passport", "path": "/a.png"}},
		{"no image", "document_upload", map[string]any{"session_id": "s", "kind": "log_card"}},
		{"both images", "document_upload", map[string]any{"session_id": "s", "kind": "log_card", "path": "/a.png", "image_base64": "AA=="}},
		{"extra property", "session_status", map[string]any{"session_id": "s", "verbose": true}},
		{"empty contact", "session_contact", map[string]any{"session_id": "s"}},
		{"bad phone", "session_contact", map[string]any{"session_id": "s", "phone": "call me"}},
		{"bad person key", "record_retry_export", map[string]any{"person_key": "John Doe"}},
		{"no arguments", "record_retry_export", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeIntake{}
			resps := exchange(t, svc, call(7, tt.tool, tt.args))
			require.Len(t, resps, 1)
			require.NotNil(t, resps[0].Error)
			assert.Equal(t, codeInvalidParams, resps[0].Error.Code)
			assert.Empty(t, svc.uploads)
			assert.Empty(t, svc.retried)
		})
	}
}

func TestToolsCall_PipelineError(t *testing.T) {
	svc := &fakeIntake{err: fmt.Errorf("%w: no key", intake.ErrMissingIdentity)}
	resps := exchange(t, svc, call(1, "document_upload", map[string]any{
		"session_id": "s", "kind": "drivers_license", "image_base64": "AAAA",
	}))

	te := toolError(t, resps[0])
	assert.Equal(t, "missing_identity", te.Code)
	assert.Equal(t, intake.UserMessage(intake.ErrMissingIdentity), te.Message)
	assert.False(t, te.Retryable)
	assert.Contains(t, te.Detail, "no key")
}

func TestSessionTools(t *testing.T) {
	svc := &fakeIntake{}
	resps := exchange(t, svc,
		call(1, "session_status", map[string]any{"session_id": "chat-1"}),
		call(2, "session_contact", map[string]any{"session_id": "chat-1", "name": "John Doe", "phone": "+65 9123 4567"}),
		call(3, "record_retry_export", map[string]any{"person_key": "john_doe"}),
	)
	require.Len(t, resps, 3)

	status := toolText(t, resps[0])
	assert.Equal(t, "john_doe", status["person_key"])
	assert.Equal(t, "awaiting_license", status["state"])

	toolText(t, resps[1])
	assert.Equal(t, []document.Contact{{Name: "John Doe", Phone: "+65 9123 4567"}}, svc.contacts)

	retry := toolText(t, resps[2])
	assert.Equal(t, true, retry["exported"])
	assert.Equal(t, []string{"john_doe"}, svc.retried)
}

func TestToolsCall_RetryExportFailure(t *testing.T) {
	svc := &fakeIntake{err: intake.ErrNotComplete}
	resps := exchange(t, svc, call(1, "record_retry_export", map[string]any{"person_key": "john_doe"}))

	te := toolError(t, resps[0])
	assert.Equal(t, "not_complete", te.Code)
}

func TestNextPrompt(t *testing.T) {
	tests := []struct {
		name string
		res  intake.Result
		want string
	}{
		{"next", intake.Result{Kind: document.KindDriversLicense, Next: document.KindLogCard},
			"Your driver's license has been received. Please upload your vehicle log card next."},
		{"exported", intake.Result{Kind: document.KindLogCard, Exported: true},
			"Your vehicle log card has been received. All documents are complete and have been submitted."},
		{"export failed", intake.Result{Kind: document.KindLogCard, ExportError: "Submitting failed."},
			"Your vehicle log card has been received. Submitting failed."},
		{"complete again", intake.Result{Kind: document.KindLogCard},
			"Your vehicle log card has been received. All documents are complete."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextPrompt(&tt.res))
		})
	}
}

func TestToolDefinitions_SchemasCompile(t *testing.T) {
	schemas, err := compileSchemas(ToolDefinitions())
	require.NoError(t, err)
	assert.Len(t, schemas, 4)

	for _, tool := range ToolDefinitions() {
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"], tool.Name)
	}

	err = validateArgs(schemas["document_upload"], json.RawMessage(`{"session_id":"s","kind":"identity_card","path":"/x.jpg"}`))
	assert.NoError(t, err)
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
