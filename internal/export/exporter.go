package export

import (
	"context"
	"fmt"
	"log/slog"
)

// Extractor produces the raw structured-record text for a transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (string, error)
}

// Relabeler rewrites speaker labels in the persisted transcript.
type Relabeler interface {
	Relabel(ctx context.Context, from, to string) error
}

// Exporter persists the summary, the structured record and the relabelled
// transcript once an interview has finished.
type Exporter struct {
	extractor Extractor
	writer    Writer
	relabeler Relabeler
	userLabel string
	logger    *slog.Logger
}

// NewExporter wires an exporter. relabeler may be nil when the transcript is
// not kept.
func NewExporter(extractor Extractor, writer Writer, relabeler Relabeler, userLabel string, logger *slog.Logger) *Exporter {
	if writer == nil {
		writer = &MemoryWriter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		extractor: extractor,
		writer:    writer,
		relabeler: relabeler,
		userLabel: userLabel,
		logger:    logger,
	}
}

// Export writes summary, asks for the structured record over transcript and
// writes it, then relabels the user's transcript rows with the candidate
// name. Only an extraction error is returned; a bad record becomes a
// ParseFailure and persistence problems are logged.
func (e *Exporter) Export(ctx context.Context, transcript, summary string) (Outcome, error) {
	if err := e.writer.WriteSummary(ctx, summary); err != nil {
		e.logger.Warn("write summary failed", "error", err)
	}

	raw, err := e.extractor.Extract(ctx, transcript)
	if err != nil {
		return Outcome{}, fmt.Errorf("extract structured record: %w", err)
	}
	outcome := Parse(raw)
	if outcome.Failed() {
		e.logger.Warn("structured record did not parse", "error", outcome.Failure.Error)
	}
	if err := e.writer.WriteStructured(ctx, outcome); err != nil {
		e.logger.Warn("write structured record failed", "error", err)
	}

	if name := outcome.Name(); name != "" && e.relabeler != nil {
		if err := e.relabeler.Relabel(ctx, e.userLabel, name); err != nil {
			e.logger.Warn("relabel transcript failed", "error", err)
		}
	}
	return outcome, nil
}
