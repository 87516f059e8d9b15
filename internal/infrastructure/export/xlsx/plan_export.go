package xlsx

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jortvara/caesync/internal/core/domain"
)

const planSheet = "Plan"

// WritePlan renders a frozen plan into an operator review workbook: one row
// per item with the decision and its reason, plus the plan identity in the
// header so a printed sheet can still be traced back to its plan.
func WritePlan(plan *domain.Plan, path string) error {
	if plan == nil {
		return fmt.Errorf("nil plan")
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", planSheet)

	set := func(cell string, value any) {
		_ = f.SetCellValue(planSheet, cell, value)
	}

	set("A1", "Plan")
	set("B1", plan.PlanID)
	set("A2", "Verdict")
	set("B2", string(plan.Verdict))
	set("A3", "Platform")
	set("B3", plan.Snapshot.Platform)
	set("A4", "Created")
	set("B4", plan.CreatedAt.Format("2006-01-02 15:04:05"))

	headers := []string{"Item", "Requirement", "Subject", "Period", "Decision", "Reason", "Confidence", "Document", "Notes"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 6)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		set(cell, h)
	}

	for row, item := range plan.Items {
		values := []any{
			item.ItemKey,
			item.Requirement.TypeLabel,
			item.Requirement.Subject.Key(),
			item.Requirement.PeriodKey,
			string(item.Decision.Kind),
			string(item.Decision.ReasonCode),
			item.Decision.Confidence,
			item.Decision.MatchedDocID,
			itemNotes(item.Decision),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+7)
			if err != nil {
				return fmt.Errorf("item cell: %w", err)
			}
			set(cell, v)
		}
	}

	summaryRow := len(plan.Items) + 8
	set(fmt.Sprintf("A%d", summaryRow), "Auto")
	set(fmt.Sprintf("B%d", summaryRow), plan.Summary.AutoUpload)
	set(fmt.Sprintf("C%d", summaryRow), "Review")
	set(fmt.Sprintf("D%d", summaryRow), plan.Summary.ReviewRequired)
	set(fmt.Sprintf("E%d", summaryRow), "No match")
	set(fmt.Sprintf("F%d", summaryRow), plan.Summary.NoMatch)
	set(fmt.Sprintf("G%d", summaryRow), "Skipped")
	set(fmt.Sprintf("H%d", summaryRow), plan.Summary.Skipped)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func itemNotes(d domain.Decision) string {
	parts := make([]string, 0, 1+len(d.BlockingIssues))
	if d.HumanHint != "" {
		parts = append(parts, d.HumanHint)
	}
	parts = append(parts, d.BlockingIssues...)
	return strings.Join(parts, "; ")
}
