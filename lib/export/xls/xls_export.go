package xlsexport

import (
	"bytes"
	scoresapimodels "video-assessment-backend/models/api/scores"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

type Provider interface {
	ExportTestScores(list []scoresapimodels.SubmissionView) (*bytes.Buffer, error)
}

var Instance Provider

func NewHandler() {
	Instance = impl{}
}

type impl struct{}

const (
	scoresSheet = "Оценки"
	traitsSheet = "Критерии"
)

var scoresHeaders = []string{"Попытка", "Кандидат", "Дата прохождения", "Статус оценки", "Оценено ответов", "Всего ответов",
	"Средняя оценка", "BERT", "Gemini", "Рекомендация", "Результат",
	"Openness", "Conscientiousness", "Extraversion", "Agreeableness", "Neuroticism"}

var traitsHeaders = []string{"Попытка", "Кандидат", "Критерий", "Приоритет", "Оценка", "Уверенность", "Вхождений"}

func (i impl) ExportTestScores(list []scoresapimodels.SubmissionView) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Error("ошибка закрытия файла")
		}
	}()
	sheet := "Sheet1"
	row, err := writeHeader(f, sheet, scoresHeaders)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка формирования заголовка в xlsx")
	}
	if len(list) != 0 {
		if _, err = writeScoresData(f, sheet, list, row); err != nil {
			return nil, errors.Wrap(err, "ошибка формирования таблицы с оценками в xlsx")
		}
	}
	if err = f.SetSheetName(sheet, scoresSheet); err != nil {
		return nil, err
	}

	if _, err = f.NewSheet(traitsSheet); err != nil {
		return nil, errors.Wrap(err, "ошибка создания листа критериев")
	}
	row, err = writeHeader(f, traitsSheet, traitsHeaders)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка формирования заголовка в xlsx")
	}
	if _, err = writeTraitsData(f, traitsSheet, list, row); err != nil {
		return nil, errors.Wrap(err, "ошибка формирования таблицы с критериями в xlsx")
	}
	return f.WriteToBuffer()
}

func writeScoresData(f *excelize.File, sheet string, list []scoresapimodels.SubmissionView, row int) (int, error) {
	if err := applyDataCellStyle(f, sheet, 1, row+1, len(scoresHeaders), len(list)+1); err != nil {
		return row, err
	}
	for _, item := range list {
		row++
		values := []interface{}{
			item.SubmissionID,
			item.CandidateID,
			formatDate(item),
			string(item.ScoringStatus),
		}
		if item.Scores != nil {
			values = append(values,
				item.Scores.AssessedAnswers,
				item.Scores.TotalAnswers,
				item.Scores.AvgOverallScore,
				item.Scores.AvgBertScore,
				item.Scores.AvgGeminiScore,
				item.Scores.FinalRecommendation,
				string(item.Scores.PassFailStatus),
			)
		} else {
			values = append(values, 0, len(item.Answers), nil, nil, nil, nil, nil)
		}
		if item.Personality != nil {
			values = append(values,
				traitValue(item.Personality.Openness),
				traitValue(item.Personality.Conscientiousness),
				traitValue(item.Personality.Extraversion),
				traitValue(item.Personality.Agreeableness),
				traitValue(item.Personality.Neuroticism),
			)
		}
		if err := writeRow(f, sheet, row, values); err != nil {
			return row, err
		}
	}
	return row, nil
}

func writeTraitsData(f *excelize.File, sheet string, list []scoresapimodels.SubmissionView, row int) (int, error) {
	for _, item := range list {
		if item.Scores == nil {
			continue
		}
		for _, trait := range item.Scores.AvgTraitScores {
			row++
			values := []interface{}{item.SubmissionID, item.CandidateID}
			if err := writeRow(f, sheet, row, append(values, traitRow(trait)...)); err != nil {
				return row, err
			}
		}
	}
	if row > 1 {
		if err := applyDataCellStyle(f, sheet, 1, 2, len(traitsHeaders), row); err != nil {
			return row, err
		}
	}
	return row, nil
}

func traitRow(trait dbmodels.TraitAverage) []interface{} {
	return []interface{}{trait.Trait, trait.Priority, trait.EnsembleScore, trait.Confidence, trait.Occurrences}
}

func traitValue(value *float64) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

func formatDate(item scoresapimodels.SubmissionView) interface{} {
	if item.SubmittedAt.IsZero() {
		return nil
	}
	return item.SubmittedAt.Format("02.01.2006 15:04")
}
