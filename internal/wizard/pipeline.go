package wizard

import (
	"context"
	stderrors "errors"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
	"github.com/hpungsan/ecapsule/internal/validate"
)

// SubmitErrorKey is the error-set key of an opaque submission failure.
const SubmitErrorKey = "submit"

// Creator creates a capsule on the remote service.
type Creator interface {
	CreateCapsule(ctx context.Context, req *api.CreateRequest) (*api.Created, error)
}

// Pipeline turns a validated draft into exactly one create request.
// At most one submission is outstanding at a time.
type Pipeline struct {
	creator   Creator
	validator *Validator
	gate      *semaphore.Weighted
	logger    *slog.Logger
}

// NewPipeline returns a pipeline sending through creator.
func NewPipeline(creator Creator, v *Validator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		creator:   creator,
		validator: v,
		gate:      semaphore.NewWeighted(1),
		logger:    logger,
	}
}

// Pending reports whether a submission is in flight.
func (p *Pipeline) Pending() bool {
	if p.gate.TryAcquire(1) {
		p.gate.Release(1)
		return false
	}
	return true
}

// Submit validates step against d and, when valid, sends d.
//
// Errors:
//   - SUBMIT_IN_FLIGHT when another submission has not resolved yet
//   - VALIDATION_FAILED with the local or server-reported field set
//   - SUBMIT_FAILED for any other failure, always with the generic message
//
// d is never modified. ctx reaches the transport unchanged.
func (p *Pipeline) Submit(ctx context.Context, step int, d capsule.Draft) (*api.Created, error) {
	if !p.gate.TryAcquire(1) {
		return nil, errors.NewSubmitInFlight()
	}
	defer p.gate.Release(1)

	if errs := p.validator.Validate(step, d); !errs.Empty() {
		return nil, errors.NewValidationFailed(errs)
	}

	req := BuildRequest(d)
	req.RequestID = uuid.NewString()
	log := p.logger.With(
		"request_id", req.RequestID,
		"images", len(req.Images),
		"privacy", req.Privacy,
		"recipients", len(req.SharedWith),
	)
	log.Info("submitting capsule")

	created, err := p.creator.CreateCapsule(ctx, req)
	if err != nil {
		var fe *api.FieldErrors
		if stderrors.As(err, &fe) && len(fe.Fields) > 0 {
			errs := ServerFieldErrors(fe)
			log.Warn("capsule rejected", "fields", errs.Fields())
			return nil, errors.NewValidationFailed(errs)
		}
		log.Error("capsule submission failed", "error", err)
		return nil, errors.NewSubmitFailed(err)
	}
	if created == nil {
		log.Error("capsule submission failed", "error", "empty response")
		return nil, errors.NewSubmitFailed(nil)
	}

	log.Info("capsule created", "id", string(created.ID))
	return created, nil
}

// BuildRequest converts a draft into the create payload. Images keep their
// order and each carries its own caption. The opening time is sent in UTC.
func BuildRequest(d capsule.Draft) *api.CreateRequest {
	req := &api.CreateRequest{
		Title:       d.Title,
		Description: d.Description,
		OpeningTime: d.OpeningTime.UTC(),
		Vision:      d.Vision,
		Privacy:     string(d.Privacy),
		Design:      d.Design,
		Images:      make([]api.ImagePart, len(d.Images)),
		SharedWith:  append([]string(nil), d.SharedWith...),
	}
	for i, img := range d.Images {
		req.Images[i] = api.ImagePart{
			FileName:  img.Name,
			MediaType: img.MediaType,
			Data:      img.Data,
			Caption:   img.Caption,
		}
	}
	return req
}

// ServerFieldErrors folds a server rejection into a draft error set.
// Indexed keys such as "images.2", "image_comments[0]" or "shared_with.1"
// collapse onto their draft field; multiple messages are joined with a space.
func ServerFieldErrors(fe *api.FieldErrors) validate.Errors {
	keys := slices.Sorted(maps.Keys(fe.Fields))
	errs := validate.Errors{}
	for _, key := range keys {
		field := DraftField(key)
		msg := strings.Join(fe.Fields[key], " ")
		if prev, ok := errs[field]; ok && prev != "" {
			msg = prev + " " + msg
		}
		errs[field] = strings.TrimSpace(msg)
	}
	return errs
}

// DraftField maps a server field key such as "images.2" or
// "image_comments[1]" to the draft field it belongs to.
func DraftField(key string) string {
	base := key
	if i := strings.IndexAny(base, ".["); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "image_comments":
		return capsule.FieldImages
	default:
		return base
	}
}
