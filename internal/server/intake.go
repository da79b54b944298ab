package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

// Metadata keys read from (and echoed back on) ExtractDocument calls.
const (
	MDFilename      = "x-filename"
	MDContentType   = "x-content-type"
	MDCorrelationID = "x-correlation-id"
	MDAcceptedAt    = "x-accepted-at"
)

type Extractor interface {
	Extract(ctx context.Context, doc entity.RawDocument) (entity.ExtractionResult, error)
}

type Classifier interface {
	Classify(ctx context.Context, req entity.ClassificationRequest) (entity.ClassificationDecision, error)
}

var _ IntakeServer = (*IntakeService)(nil)

type IntakeService struct {
	extractor  Extractor
	classifier Classifier
	logger     *slog.Logger
}

func NewIntakeService(extractor Extractor, classifier Classifier, logger *slog.Logger) *IntakeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeService{extractor: extractor, classifier: classifier, logger: logger}
}

// ExtractDocument implements IntakeServer
func (s *IntakeService) ExtractDocument(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	doc := entity.RawDocument{
		Data:          in.GetValue(),
		Filename:      first(md, MDFilename),
		ContentType:   first(md, MDContentType),
		CorrelationID: common.EnsureCorrelationID(first(md, MDCorrelationID)),
	}
	if len(doc.Data) == 0 {
		return nil, common.InvalidArgumentError("document bytes are required")
	}

	start := time.Now()
	s.logger.Info("server.extract.start", "correlation_id", doc.CorrelationID, "filename", doc.Filename, "bytes", len(doc.Data))
	res, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		s.logger.Warn("server.extract.failed", "correlation_id", doc.CorrelationID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.ToStatus(err)
	}

	_ = grpc.SetHeader(ctx, metadata.Pairs(
		MDCorrelationID, doc.CorrelationID,
		MDAcceptedAt, string(res.AcceptedAt),
	))

	out, err := toStruct(res.Record)
	if err != nil {
		s.logger.Error("server.extract.encode_failed", "correlation_id", doc.CorrelationID, "error", err)
		return nil, common.InternalError("encode record")
	}
	s.logger.Info("server.extract.ok", "correlation_id", doc.CorrelationID, "accepted_at", res.AcceptedAt,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// ClassifyRequest implements IntakeServer
func (s *IntakeService) ClassifyRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return nil, common.InvalidArgumentErrorf("encode request: %v", err)
	}
	var req entity.ClassificationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, common.InvalidArgumentErrorf("invalid classification request: %v", err)
	}
	req.CorrelationID = common.EnsureCorrelationID(req.CorrelationID)

	start := time.Now()
	s.logger.Info("server.classify.start", "correlation_id", req.CorrelationID, "candidates", len(req.Candidates))
	d, err := s.classifier.Classify(ctx, req)
	if err != nil {
		s.logger.Warn("server.classify.failed", "correlation_id", req.CorrelationID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.ToStatus(err)
	}

	out, err := toStruct(d)
	if err != nil {
		s.logger.Error("server.classify.encode_failed", "correlation_id", req.CorrelationID, "error", err)
		return nil, common.InternalError("encode decision")
	}
	s.logger.Info("server.classify.ok", "correlation_id", req.CorrelationID, "decided_at", d.DecidedAt,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func first(md metadata.MD, key string) string {
	if vs := md.Get(key); len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}
