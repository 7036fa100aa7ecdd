package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/submission"
)

type InferenceReport struct {
	Questions      int
	Answered       int
	NotAvailable   int
	OutputKey      string
	UploadResponse string
	Duration       time.Duration
}

// RunInference answers the questions file and writes the submission. Upload
// and workbook failures are logged; the JSON file is the primary result.
func (a *App) RunInference(ctx context.Context) (InferenceReport, error) {
	started := time.Now()
	inf, err := a.LoadInference(ctx)
	if err != nil {
		return InferenceReport{}, err
	}

	questions, err := submission.LoadQuestions(a.Config.QuestionsPath)
	if err != nil {
		return InferenceReport{}, err
	}
	a.Logger.Info("inference_started", "questions", len(questions), "path", a.Config.QuestionsPath)

	records := inf.Batch.AnswerAll(ctx, questions)
	report := InferenceReport{Questions: len(records), OutputKey: a.outputKey}
	for _, r := range records {
		if r.Value.IsNA() {
			report.NotAvailable++
		} else {
			report.Answered++
		}
	}

	sub := domain.Submission{
		TeamEmail:      a.Config.TeamEmail,
		SubmissionName: a.Config.SubmissionName,
		Answers:        records,
	}
	raw, err := a.Submissions.WriteJSON(ctx, a.outputKey, sub)
	if err != nil {
		return report, fmt.Errorf("write submission: %w", err)
	}
	a.Logger.Info("submission_saved", "key", a.outputKey, "answered", report.Answered, "not_available", report.NotAvailable)

	if a.Config.OutputXLSX != "" {
		if err := a.Submissions.WriteWorkbook(ctx, a.Config.OutputXLSX, sub); err != nil {
			a.Logger.Error("workbook_write_failed", "key", a.Config.OutputXLSX, "error", err)
		}
	}

	if a.Uploader != nil {
		resp, err := a.Uploader.Upload(ctx, filepath.Base(a.outputKey), raw)
		if err != nil {
			a.Logger.Error("submission_upload_failed", "url", a.Config.SubmissionURL, "error", err)
		} else {
			report.UploadResponse = resp
			a.Logger.Info("submission_uploaded", "url", a.Config.SubmissionURL, "response", resp)
		}
	}

	report.Duration = time.Since(started)
	return report, nil
}
