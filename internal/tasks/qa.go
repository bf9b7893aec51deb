package tasks

import (
	"context"
	"errors"

	"github.com/yourusername/areadera/internal/jobs"
)

const lookupTextLen = 100

// GenerateQATask は小項目の内容から四択問題を1問生成します。
// 引数: [sectionContent string, subPointContent string]
type GenerateQATask struct {
	deps Dependencies
}

// NewGenerateQATask は GenerateQATask を作成します。
func NewGenerateQATask(deps Dependencies) *GenerateQATask {
	return &GenerateQATask{deps: deps.withDefaults()}
}

func (t *GenerateQATask) Name() string { return GenerateQATaskName }

func (t *GenerateQATask) Execute(ctx context.Context, args jobs.Args, _ jobs.ProgressReporter) jobs.Outcome {
	if err := args.Expect(2); err != nil {
		return jobs.Failed(err, nil)
	}
	sectionContent, err := args.String(0)
	if err != nil {
		return jobs.Failed(err, nil)
	}
	subPointContent, err := args.String(1)
	if err != nil {
		return jobs.Failed(err, nil)
	}

	var qa *QA
	err = runPhase(ctx, t.deps.PhaseTimeout, "Q&A Generation", func(ctx context.Context) (err error) {
		qa, err = t.deps.QA.GenerateQA(ctx, sectionContent, subPointContent)
		return err
	})
	if err != nil {
		return jobs.Failed(err, nil)
	}
	if qa == nil {
		return jobs.Failed(errors.New("qa generator returned no result"), nil)
	}

	result := *qa
	result.LookupText = LookupText(subPointContent)
	return jobs.Succeeded(result)
}

// LookupText は小項目の先頭100文字を返します。
func LookupText(content string) string {
	runes := []rune(content)
	if len(runes) <= lookupTextLen {
		return content
	}
	return string(runes[:lookupTextLen])
}
