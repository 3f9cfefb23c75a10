// Package intake is the upload boundary of the document pipeline.
//
// Service.HandleUpload takes the bytes of one photographed document and runs
// it through every stage in order:
//
//	decode -> enhance -> OCR -> extract -> correlate -> aggregate -> store image
//
// Uploads for one session are serialised; different sessions run
// concurrently. Each failure is classified into one of the sentinels in
// errors.go and logged once, here, with the session and kind attached.
// UserMessage turns a classified error into text for the uploader.
package intake

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
	"github.com/ironsheep/doc-intake-mcp/internal/correlate"
	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/extract"
	"github.com/ironsheep/doc-intake-mcp/internal/imagestore"
	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
	"github.com/ironsheep/doc-intake-mcp/internal/metrics"
	"github.com/ironsheep/doc-intake-mcp/internal/ocr"
)

// Enhancer prepares an image for OCR.
type Enhancer interface {
	Enhance(ctx context.Context, img image.Image) (image.Image, error)
}

// Recognizer offers both OCR capabilities. *ocr.Bounded satisfies it.
type Recognizer interface {
	ocr.TextRecognizer
	ocr.AnnotatedRecognizer
}

// Result is the outcome of one successful upload.
type Result struct {
	SessionID string              `json:"session_id"`
	Kind      document.Kind       `json:"kind"`
	PersonKey correlate.PersonKey `json:"person_key"`

	// Fields holds what was extracted from this document only.
	Fields map[string]string `json:"fields"`

	State  document.State   `json:"state"`
	Next   document.Kind    `json:"next,omitempty"`
	Status aggregate.Status `json:"status"`

	// Exported is true when this upload completed the record and the
	// export succeeded.
	Exported bool `json:"exported"`

	// ExportErr is set when this upload completed the record but the
	// export failed. The upload itself still succeeded.
	ExportErr   error  `json:"-"`
	ExportError string `json:"export_error,omitempty"`

	// ImagePath is where the original photo was saved. Empty when no image
	// store is configured or saving failed.
	ImagePath string `json:"image_path,omitempty"`
}

// SessionStatus summarises a session's progress.
type SessionStatus struct {
	SessionID     string              `json:"session_id"`
	PersonKey     correlate.PersonKey `json:"person_key,omitempty"`
	State         document.State      `json:"state"`
	Next          document.Kind       `json:"next,omitempty"`
	Contributed   []document.Kind     `json:"contributed"`
	Fields        map[string]string   `json:"fields,omitempty"`
	Exported      bool                `json:"exported"`
	PendingExport bool                `json:"pending_export"`
}

// ExportResult is the outcome of a manual export retry.
type ExportResult struct {
	PersonKey correlate.PersonKey `json:"person_key"`
	Exported  bool                `json:"exported"`
}

// Service runs uploads through the pipeline.
type Service struct {
	enhancer   Enhancer
	recognizer Recognizer
	correlator *correlate.Correlator
	aggregator *aggregate.Aggregator
	images     imagestore.Store

	logger            *slog.Logger
	metrics           *metrics.Metrics
	preprocessTimeout time.Duration

	sessions *sessionLocks
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPreprocessTimeout bounds image enhancement. Zero disables the bound.
func WithPreprocessTimeout(d time.Duration) Option {
	return func(s *Service) { s.preprocessTimeout = d }
}

// WithImageStore saves each accepted photo under its person's folder.
func WithImageStore(store imagestore.Store) Option {
	return func(s *Service) { s.images = store }
}

// NewService wires the pipeline stages together.
func NewService(enhancer Enhancer, recognizer Recognizer, correlator *correlate.Correlator, aggregator *aggregate.Aggregator, opts ...Option) *Service {
	s := &Service{
		enhancer:   enhancer,
		recognizer: recognizer,
		correlator: correlator,
		aggregator: aggregator,
		logger:     slog.Default(),
		sessions:   newSessionLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleUpload processes one document photo for sessionID.
//
// kind is the caller-declared document kind. Documents other than the
// identity card are rejected with ErrMissingIdentity until the session has
// an identity card with a readable name; the check runs before any image
// work. A failed upload never changes the session state.
func (s *Service) HandleUpload(ctx context.Context, sessionID, kind string, data []byte) (*Result, error) {
	start := time.Now()
	log := s.logger.With("session_id", sessionID, "kind", kind)

	res, err := s.handleUpload(ctx, sessionID, kind, data)
	err = classify(err)
	s.metrics.ObserveUpload(kindLabel(kind), Code(err))

	if err != nil {
		log.Warn("upload rejected", "code", Code(err), "err", err, "duration", time.Since(start))
		return nil, err
	}
	if res.ExportErr != nil {
		res.ExportErr = classify(res.ExportErr)
		res.ExportError = UserMessage(res.ExportErr)
		log.Error("upload accepted but export failed",
			"person_key", res.PersonKey, "err", res.ExportErr)
	}
	log.Info("upload accepted",
		"person_key", res.PersonKey,
		"fields", len(res.Fields),
		"state", res.State,
		"exported", res.Exported,
		"duration", time.Since(start))
	return res, nil
}

// kindLabel keeps the metric label set bounded.
func kindLabel(kind string) string {
	if k, err := document.ParseKind(kind); err == nil {
		return string(k)
	}
	return "invalid"
}

func (s *Service) handleUpload(ctx context.Context, sessionID, rawKind string, data []byte) (*Result, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	kind, err := document.ParseKind(rawKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKind, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrDecode)
	}

	release, err := s.sessions.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Later documents need a key before any expensive work runs.
	var key correlate.PersonKey
	if kind != document.KindIdentityCard {
		key, err = s.correlator.Lookup(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}

	t := time.Now()
	img, err := imaging.Decode(data)
	s.metrics.ObserveStage("decode", t)
	if err != nil {
		return nil, err
	}

	enhanced, err := s.enhance(ctx, img)
	if err != nil {
		return nil, err
	}

	fields, err := s.recognize(ctx, kind, enhanced)
	if err != nil {
		return nil, err
	}

	if kind == document.KindIdentityCard {
		key, err = correlate.KeyFor(&fields)
		if err != nil {
			return nil, err
		}
	}

	t = time.Now()
	out, err := s.aggregator.Contribute(ctx, key, fields)
	s.metrics.ObserveStage("aggregate", t)
	if err != nil {
		return nil, err
	}

	// The session only points at a record once the card's fields are stored.
	if kind == document.KindIdentityCard {
		t = time.Now()
		_, err = s.correlator.AssignOrFetchKey(ctx, sessionID, &fields)
		s.metrics.ObserveStage("correlate", t)
		if err != nil {
			return nil, err
		}
	}

	state := out.Record.State()
	next, _ := state.Next()
	res := &Result{
		SessionID: sessionID,
		Kind:      kind,
		PersonKey: key,
		Fields:    fields.Map(),
		State:     state,
		Next:      next,
		Status:    out.Status,
		Exported:  out.Exported,
		ExportErr: out.ExportErr,
	}
	res.ImagePath = s.saveImage(ctx, key, kind, img)
	return res, nil
}

func (s *Service) enhance(ctx context.Context, img image.Image) (image.Image, error) {
	if s.preprocessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.preprocessTimeout)
		defer cancel()
	}
	defer s.metrics.ObserveStage("enhance", time.Now())
	return s.enhancer.Enhance(ctx, img)
}

// recognize runs the OCR capability the kind needs and extracts its fields.
func (s *Service) recognize(ctx context.Context, kind document.Kind, img image.Image) (document.FieldSet, error) {
	var in extract.Input
	var err error

	t := time.Now()
	if extract.NeedsAnnotations(kind) {
		in.Annotations, err = s.recognizer.RecognizeAnnotated(ctx, img)
	} else {
		in.Text, err = s.recognizer.RecognizeText(ctx, img)
	}
	s.metrics.ObserveStage("ocr", t)
	if err != nil {
		return document.FieldSet{}, err
	}

	t = time.Now()
	fields, err := extract.Extract(kind, in)
	s.metrics.ObserveStage("extract", t)
	if err != nil {
		return document.FieldSet{}, err
	}
	if fields.Len() == 0 {
		s.logger.Warn("no fields matched in recognised text", "kind", kind)
	}
	return fields, nil
}

// saveImage stores the original photo. Failures are logged and do not fail
// the upload: the fields are already durable.
func (s *Service) saveImage(ctx context.Context, key correlate.PersonKey, kind document.Kind, img image.Image) string {
	if s.images == nil {
		return ""
	}
	defer s.metrics.ObserveStage("store_image", time.Now())
	path, err := s.images.Save(ctx, string(key), kind, img)
	if err != nil {
		s.logger.Warn("could not save document image", "person_key", key, "kind", kind, "err", err)
		return ""
	}
	return path
}

// Status reports the progress of sessionID. A session without an identity
// card is reported as awaiting one, not as an error.
func (s *Service) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	st := &SessionStatus{
		SessionID:   sessionID,
		State:       document.StateAwaitingIdentity,
		Next:        document.KindIdentityCard,
		Contributed: []document.Kind{},
	}

	key, err := s.correlator.Lookup(ctx, sessionID)
	if errors.Is(err, correlate.ErrMissingIdentity) {
		return st, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	st.PersonKey = key

	rec, err := s.aggregator.Record(ctx, key)
	if errors.Is(err, aggregate.ErrNoRecord) {
		return st, nil
	}
	if err != nil {
		return nil, classify(err)
	}

	st.State = rec.State()
	st.Next, _ = st.State.Next()
	st.Contributed = rec.ContributedKinds()
	st.Fields = rec.Fields
	st.Exported = rec.Exported
	st.PendingExport = rec.PendingExport()
	return st, nil
}

// SetContact attaches contact details to the session's record. The session
// must already have an identity card.
func (s *Service) SetContact(ctx context.Context, sessionID string, contact document.Contact) (*SessionStatus, error) {
	if len(contact.Fields()) == 0 {
		return nil, fmt.Errorf("%w: contact has no name or phone", ErrInvalidInput)
	}

	key, err := s.correlator.Lookup(ctx, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	if _, err := s.aggregator.AttachContact(ctx, key, contact); err != nil {
		err = classify(err)
		s.logger.Warn("contact not saved", "session_id", sessionID, "person_key", key, "err", err)
		return nil, err
	}
	s.logger.Info("contact attached", "session_id", sessionID, "person_key", key)
	return s.Status(ctx, sessionID)
}

// RetryExport re-attempts the export of a complete record whose earlier
// export failed.
func (s *Service) RetryExport(ctx context.Context, personKey string) (*ExportResult, error) {
	key := correlate.PersonKey(personKey)
	out, err := s.aggregator.RetryExport(ctx, key)
	if err != nil {
		err = classify(err)
		s.logger.Warn("export retry failed", "person_key", key, "code", Code(err), "err", err)
		return nil, err
	}
	s.logger.Info("export retried", "person_key", key)
	return &ExportResult{PersonKey: key, Exported: out.Exported}, nil
}
