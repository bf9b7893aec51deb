package tasks

import (
	"context"
	"errors"

	"github.com/yourusername/areadera/internal/jobs"
)

// GenerateSectionReportTask は利用者のセクション学習レポートを生成します。
// 引数: [userID int, sectionID int]
type GenerateSectionReportTask struct {
	deps Dependencies
}

// NewGenerateSectionReportTask は GenerateSectionReportTask を作成します。
func NewGenerateSectionReportTask(deps Dependencies) *GenerateSectionReportTask {
	return &GenerateSectionReportTask{deps: deps.withDefaults()}
}

func (t *GenerateSectionReportTask) Name() string { return GenerateSectionReportTaskName }

func (t *GenerateSectionReportTask) Execute(ctx context.Context, args jobs.Args, _ jobs.ProgressReporter) jobs.Outcome {
	if err := args.Expect(2); err != nil {
		return jobs.Failed(err, nil)
	}
	userID, err := args.Int(0)
	if err != nil {
		return jobs.Failed(err, nil)
	}
	sectionID, err := args.Int(1)
	if err != nil {
		return jobs.Failed(err, nil)
	}

	var report *SectionReport
	err = runPhase(ctx, t.deps.PhaseTimeout, "Report Generation", func(ctx context.Context) (err error) {
		report, err = t.deps.Reports.GenerateReport(ctx, userID, sectionID)
		return err
	})
	if err != nil {
		return jobs.Failed(err, nil)
	}
	if report == nil {
		return jobs.Failed(errors.New("report generator returned no result"), nil)
	}

	result := *report
	result.UserID = userID
	result.SectionID = sectionID
	return jobs.Succeeded(result)
}
