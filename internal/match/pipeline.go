package match

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/csvx"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

const Stage = "match"

var (
	MatchedHeader   = []string{"open_hadith_id", "id", "hadith_no"}
	UnmatchedHeader = []string{"id", "hadith_no"}
)

// Paths 汇总一个来源的输入输出文件。
type Paths struct {
	Dataset      string
	Candidates   string
	Explanations string
	Matched      string
	Unmatched    string
}

func SourcePaths(dataDir, folder string) Paths {
	dir := filepath.Join(dataDir, folder)
	return Paths{
		Dataset:      filepath.Join(dataDir, "hadiths_dataset.csv"),
		Candidates:   filepath.Join(dir, "hadiths.csv"),
		Explanations: filepath.Join(dir, "explanations.csv"),
		Matched:      filepath.Join(dir, "matched_hadiths.csv"),
		Unmatched:    filepath.Join(dir, "unmatched_hadiths.csv"),
	}
}

// ProcessSource 读取一个来源的三份输入，执行匹配，并写出 matched/unmatched 两份 CSV。
func ProcessSource(ctx context.Context, dataDir string, src config.SourceConfig, opts Options) (Result, error) {
	p := SourcePaths(dataDir, src.Folder)

	refs, err := LoadReferences(p.Dataset, src.Name)
	if err != nil {
		return Result{}, err
	}
	cands, err := LoadCandidates(p.Candidates, p.Explanations)
	if err != nil {
		return Result{}, err
	}

	res, err := Match(ctx, cands, refs, opts)
	if err != nil {
		return res, err
	}

	matched := make([][]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		matched = append(matched, []string{m.CandidateID, m.ReferenceID, m.HadithNo})
	}
	if err := csvx.WriteFile(p.Matched, MatchedHeader, matched); err != nil {
		return res, fmt.Errorf("写入 %s 失败：%w", p.Matched, err)
	}

	unmatched := make([][]string, 0, len(res.Unmatched))
	for _, r := range res.Unmatched {
		unmatched = append(unmatched, []string{r.ID, r.HadithNo})
	}
	if err := csvx.WriteFile(p.Unmatched, UnmatchedHeader, unmatched); err != nil {
		return res, fmt.Errorf("写入 %s 失败：%w", p.Unmatched, err)
	}
	return res, nil
}

// LoadReferences 读取 hadiths_dataset.csv，只保留 source（去首尾空白后）等于 name 的行。
func LoadReferences(path, name string) ([]domain.Reference, error) {
	tb, err := csvx.ReadFile(path, true)
	if err != nil {
		return nil, err
	}
	if err := tb.Require("source", "id", "hadith_no", "text_ar"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	iSrc, iID, iNo, iText, iChap := tb.Index("source"), tb.Index("id"), tb.Index("hadith_no"), tb.Index("text_ar"), tb.Index("chapter")

	var out []domain.Reference
	for _, row := range tb.Rows {
		if strings.TrimSpace(csvx.Field(row, iSrc)) != name {
			continue
		}
		out = append(out, domain.Reference{
			ID:       csvx.Field(row, iID),
			HadithNo: csvx.Field(row, iNo),
			TextAr:   csvx.Field(row, iText),
			Source:   name,
			Chapter:  csvx.Field(row, iChap),
		})
	}
	return out, nil
}

// LoadCandidates 读取无表头的 hadiths.csv（id, text）与 explanations.csv（id, hadith_text, explanation）。
// 解释按 id 关联；同一 id 出现多次时以最后一行为准。
func LoadCandidates(textsPath, explanationsPath string) ([]domain.Candidate, error) {
	ex, err := LoadExplanations(explanationsPath)
	if err != nil {
		return nil, err
	}
	tb, err := csvx.ReadFile(textsPath, false)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(tb.Rows))
	for _, row := range tb.Rows {
		id := csvx.Field(row, 0)
		out = append(out, domain.Candidate{
			ID:          id,
			Text:        csvx.Field(row, 1),
			Explanation: ex[id].Explanation,
		})
	}
	return out, nil
}

// Explanation 是 explanations.csv 的一行。
type Explanation struct {
	HadithText  string
	Explanation string
}

func LoadExplanations(path string) (map[string]Explanation, error) {
	tb, err := csvx.ReadFile(path, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Explanation, len(tb.Rows))
	for _, row := range tb.Rows {
		out[csvx.Field(row, 0)] = Explanation{
			HadithText:  csvx.Field(row, 1),
			Explanation: csvx.Field(row, 2),
		}
	}
	return out, nil
}

// Execute 对每个配置的来源执行匹配。每个来源一条结果；未被认领的参考各自形成一条 unmatched 条目。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	opts := Options{Threshold: eff.Match.Threshold, Workers: eff.Match.Workers}

	var items []domain.ItemResult
	for i, src := range eff.Sources {
		started := time.Now()
		res, err := ProcessSource(ctx, eff.DataDir, src, opts)

		var it domain.ItemResult
		if err != nil {
			it = domain.Fatal(Stage, src.Folder, errCode(err), err.Error())
			log.Error().Err(err).Str("source", src.Name).Msg("匹配失败")
		} else {
			it = domain.Processed(Stage, src.Folder, fsx.Rel(eff.Root, SourcePaths(eff.DataDir, src.Folder).Matched))
			for _, r := range res.Unmatched {
				items = append(items, domain.ItemResult{
					Key:       src.Folder + "/" + r.ID,
					Stage:     Stage,
					Status:    domain.StatusUnmatched,
					ErrorCode: domain.ErrCodeUnmatchedRef,
					ErrorMsg:  fmt.Sprintf("hadith_no=%s 没有被任何解释条目匹配", strings.TrimSpace(r.HadithNo)),
				})
			}
			log.Info().
				Str("source", src.Name).
				Int("matched", len(res.Matches)).
				Int("unmatched", len(res.Unmatched)).
				Int("skipped", res.Skipped).
				Int("dropped", res.Dropped).
				Float64("threshold", opts.Threshold).
				Msg("匹配完成")
		}
		items = append(items, it)
		hook.Call(i+1, len(eff.Sources), it, time.Since(started))
	}
	return items
}

func errCode(err error) string {
	if csvx.IsParseError(err) {
		return domain.ErrCodeParseFailed
	}
	return domain.ErrCodeIOFailed
}
