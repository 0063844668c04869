// Package consolidate merges the stage artifacts of a run into the final
// result and writes the output files.
package consolidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"claimease/internal/domain"
	"claimease/internal/port"
	"claimease/internal/report"
)

// Output file names inside the subject's output folder.
const (
	ResultFile  = "result.json"
	MissingFile = "missing_fields.csv"
	ReportFile  = "report.xlsx"
	SummaryFile = "summary.md"
)

var contentTypes = map[string]string{
	ResultFile:  "application/json",
	MissingFile: "text/csv; charset=utf-8",
	ReportFile:  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	SummaryFile: "text/markdown; charset=utf-8",
}

// Config holds consolidation settings.
type Config struct {
	OutputDir    string
	Weights      Weights
	UploadPrefix string
	// PresignExpiry is the lifetime in seconds of the download URLs of
	// uploaded outputs. Zero leaves the result without URLs.
	PresignExpiry int64
}

// Stage builds the FinalResult and its files. storage may be nil, in which
// case nothing is uploaded.
type Stage struct {
	storage port.ObjectStorage
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewStage creates the consolidation stage.
func NewStage(storage port.ObjectStorage, cfg Config, logger *slog.Logger) *Stage {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{storage: storage, cfg: cfg, logger: logger, now: time.Now}
}

// Consolidate merges the artifacts, writes result.json, missing_fields.csv,
// report.xlsx and summary.md, and uploads them when storage is configured.
func (s *Stage) Consolidate(ctx context.Context, in port.ConsolidationInput) (*domain.FinalResult, error) {
	dir := filepath.Join(s.cfg.OutputDir, in.Subject)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.Permanent(fmt.Errorf("creating output folder: %w", err))
	}

	missing := in.Form.MissingFields
	if missing == nil {
		missing = []domain.MissingField{}
	}
	timings := in.Timings
	if timings == nil {
		timings = []domain.StageTiming{}
	}
	res := &domain.FinalResult{
		JobID:          in.JobID,
		Subject:        in.Subject,
		TemplateID:     in.Analysis.TemplateID,
		Referral:       in.Analysis.Referral.Summary,
		OCR:            in.OCR.Metrics,
		EntityCounts:   report.EntityCounts(in.Entities.Entities),
		FilledFormPath: in.Form.FilledFormPath,
		RenderMode:     in.Form.RenderMode,
		FilledCount:    in.Form.FilledCount,
		TotalCount:     in.Form.TotalCount,
		MissingFields:  missing,
		Score:          Score(in.OCR, in.Entities, in.Form, s.cfg.Weights),
		Timings:        timings,
		CompletedAt:    s.now().UTC(),
	}
	res.OutputFiles = []string{
		res.FilledFormPath,
		filepath.Join(dir, ResultFile),
		filepath.Join(dir, MissingFile),
		filepath.Join(dir, ReportFile),
		filepath.Join(dir, SummaryFile),
	}

	if err := s.presign(ctx, res); err != nil {
		return nil, err
	}

	rep := report.Input{Result: res, Fields: in.Form.Fields, Entities: in.Entities.Entities}
	files, err := s.render(res, rep)
	if err != nil {
		return nil, domain.Permanent(err)
	}
	for _, name := range []string{ResultFile, MissingFile, ReportFile, SummaryFile} {
		if err := os.WriteFile(filepath.Join(dir, name), files[name], 0o644); err != nil {
			return nil, domain.Permanent(fmt.Errorf("writing %s: %w", name, err))
		}
	}

	if err := s.upload(ctx, res, files); err != nil {
		return nil, err
	}

	s.logger.Info("consolidate.Consolidate: result written",
		"job_id", in.JobID,
		"patient", in.Subject,
		"overall_score", res.Score.Overall,
		"filled", res.FilledCount,
		"total", res.TotalCount,
		"missing", len(res.MissingFields),
	)
	return res, nil
}

func (s *Stage) render(res *domain.FinalResult, rep report.Input) (map[string][]byte, error) {
	files := make(map[string][]byte, 4)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ResultFile, err)
	}
	files[ResultFile] = data

	var csvBuf bytes.Buffer
	if err := report.WriteMissingFieldsCSV(&csvBuf, res.MissingFields); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", MissingFile, err)
	}
	files[MissingFile] = csvBuf.Bytes()

	xlsx, err := report.Workbook(rep)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ReportFile, err)
	}
	files[ReportFile] = xlsx

	files[SummaryFile] = []byte(report.Summary(rep))
	return files, nil
}

// uploadKey is the object key of one output file of res.
func (s *Stage) uploadKey(res *domain.FinalResult, name string) string {
	return path.Join(s.cfg.UploadPrefix, res.Subject, res.JobID, name)
}

// uploadNames lists the file names uploaded for res.
func uploadNames(res *domain.FinalResult) []string {
	names := []string{ResultFile, MissingFile, ReportFile, SummaryFile}
	if res.FilledFormPath != "" {
		names = append(names, filepath.Base(res.FilledFormPath))
	}
	return names
}

// presign records a download URL for every file upload will write. URLs are
// signed before the upload so result.json carries them.
func (s *Stage) presign(ctx context.Context, res *domain.FinalResult) error {
	if s.storage == nil || s.cfg.PresignExpiry <= 0 {
		return nil
	}
	urls := make(map[string]string)
	for _, name := range uploadNames(res) {
		url, err := s.storage.GetPresignedURL(ctx, s.uploadKey(res, name), s.cfg.PresignExpiry)
		if err != nil {
			return domain.Transient(fmt.Errorf("presigning %s: %w", name, err))
		}
		urls[name] = url
	}
	res.DownloadURLs = urls
	return nil
}

// upload copies the output files and the filled form under
// <prefix>/<subject>/<job_id>/. Storage errors are transient; objects written
// before a failed upload are removed so a retry starts clean.
func (s *Stage) upload(ctx context.Context, res *domain.FinalResult, files map[string][]byte) error {
	if s.storage == nil {
		return nil
	}
	var uploaded []string
	put := func(name string, body io.Reader, contentType string) error {
		key := s.uploadKey(res, name)
		if _, err := s.storage.Upload(ctx, port.UploadInput{Key: key, Body: body, ContentType: contentType}); err != nil {
			s.removeUploaded(ctx, uploaded)
			return domain.Transient(fmt.Errorf("uploading %s: %w", name, err))
		}
		uploaded = append(uploaded, key)
		return nil
	}

	for _, name := range []string{ResultFile, MissingFile, ReportFile, SummaryFile} {
		if err := put(name, bytes.NewReader(files[name]), contentTypes[name]); err != nil {
			return err
		}
	}

	if res.FilledFormPath == "" {
		return nil
	}
	form, err := os.Open(res.FilledFormPath)
	if err != nil {
		s.logger.Warn("consolidate.upload: filled form not readable, skipping", "path", res.FilledFormPath, "error", err)
		delete(res.DownloadURLs, filepath.Base(res.FilledFormPath))
		return nil
	}
	defer form.Close()
	return put(filepath.Base(res.FilledFormPath), form, "application/pdf")
}

func (s *Stage) removeUploaded(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("consolidate.upload: removing partial upload failed", "key", key, "error", err)
		}
	}
}
