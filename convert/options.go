package convert

import (
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/quire/renderer"
	"github.com/ByLCY/quire/source"
)

// Option configures a Service.
type Option func(*Service)

// WithRenderer replaces the backend selected by the configuration. The same
// value measures text during layout and draws the final PDF.
func WithRenderer(r renderer.Measurer) Option {
	return func(s *Service) { s.renderer, s.injected = r, r != nil }
}

// WithFetcher replaces the HTTP/browser fetcher chosen per request.
func WithFetcher(f source.Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithValidator replaces the PDF validator used for file merges.
func WithValidator(v source.Validator) Option {
	return func(s *Service) { s.validator = v }
}

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, mainly for deterministic filenames in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}
