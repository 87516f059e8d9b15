package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jortvara/caesync/internal/bootstrap"
	"github.com/jortvara/caesync/internal/config"
	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/usecase"
	"github.com/jortvara/caesync/internal/infrastructure/export/xlsx"
	"github.com/jortvara/caesync/internal/observability/logging"
)

const usage = `usage: planner <command> [flags]

commands:
  plan          build a frozen submission plan from a requirement batch file
  add-doc       register an artifact into the document catalog
  advance       advance a document along its status lifecycle
  calendar      show the expected period calendar for a type and subject
  backfill      infer missing period keys on existing catalog documents
  confirm       record a learned hint from a confirmed match
  disable-hint  disable a learned hint by id
  hints         list learned hints
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)
	ctx := context.Background()

	app, err := bootstrap.New(ctx, cfg, nil, logger)
	if err != nil {
		fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	switch os.Args[1] {
	case "plan":
		err = runPlan(ctx, app, os.Args[2:])
	case "add-doc":
		err = runAddDoc(ctx, app, os.Args[2:])
	case "advance":
		err = runAdvance(ctx, app, os.Args[2:])
	case "calendar":
		err = runCalendar(ctx, app, os.Args[2:])
	case "backfill":
		err = runBackfill(ctx, app, os.Args[2:])
	case "confirm":
		err = runConfirm(ctx, app, os.Args[2:])
	case "disable-hint":
		err = runDisableHint(ctx, app, os.Args[2:])
	case "hints":
		err = runHints(ctx, app, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runPlan(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	batchFile := fs.String("batch", "", "path to a requirement batch JSON file")
	types := fs.String("types", "", "comma-separated type ids in scope (required)")
	companies := fs.String("companies", "", "comma-separated company keys to narrow the scope")
	persons := fs.String("persons", "", "comma-separated person keys to narrow the scope")
	periods := fs.String("periods", "", "comma-separated period keys to narrow the scope")
	outJSON := fs.String("out", "", "write the full plan as JSON to this path")
	outXLSX := fs.String("xlsx", "", "write the operator review workbook to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batchFile == "" {
		return fmt.Errorf("plan: -batch is required")
	}

	raw, err := os.ReadFile(*batchFile)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	var batch domain.RequirementBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return fmt.Errorf("decode batch file: %w", err)
	}

	plan, err := app.Planner.BuildPlan(ctx, domain.PlanRequest{
		Scope: domain.PlanScope{
			Platform:    batch.Platform,
			TypeIDs:     splitList(*types),
			CompanyKeys: splitList(*companies),
			PersonKeys:  splitList(*persons),
			PeriodKeys:  splitList(*periods),
		},
		Requirements: batch.Requirements,
	})
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	fmt.Printf("plan %s: %s\n", plan.PlanID, plan.Verdict)
	fmt.Printf("  auto=%d review=%d no_match=%d skipped=%d failed=%d\n",
		plan.Summary.AutoUpload, plan.Summary.ReviewRequired, plan.Summary.NoMatch,
		plan.Summary.Skipped, plan.Summary.Failed)
	for _, item := range plan.Items {
		fmt.Printf("  %-50s %-16s %-24s %.2f\n",
			item.ItemKey, item.Decision.Kind, item.Decision.ReasonCode, item.Decision.Confidence)
	}
	for _, d := range plan.Diagnostics {
		fmt.Printf("  ! %s\n", d)
	}

	if *outJSON != "" {
		encoded, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		if err := os.WriteFile(*outJSON, encoded, 0o644); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
	}
	if *outXLSX != "" {
		if err := xlsx.WritePlan(plan, *outXLSX); err != nil {
			return fmt.Errorf("export workbook: %w", err)
		}
	}
	return nil
}

func runAddDoc(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("add-doc", flag.ExitOnError)
	typeID := fs.String("type", "", "document type id (required)")
	company := fs.String("company", "", "company key")
	person := fs.String("person", "", "person key")
	file := fs.String("file", "", "path to the artifact file (required)")
	issued := fs.String("issued", "", "issue date as YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeID == "" || *file == "" {
		return fmt.Errorf("add-doc: -type and -file are required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var ext domain.Extracted
	if *issued != "" {
		d, err := time.Parse("2006-01-02", *issued)
		if err != nil {
			return fmt.Errorf("parse -issued: %w", err)
		}
		ext.IssueDate = &d
	}

	doc, err := app.Intake.Register(ctx, usecase.IntakeRequest{
		TypeID:     *typeID,
		CompanyKey: *company,
		PersonKey:  *person,
		Filename:   *file,
		Extracted:  ext,
		Data:       f,
	})
	if err != nil {
		return err
	}
	fmt.Printf("document %s registered (period=%q needs_period=%v validity_confidence=%.2f)\n",
		doc.DocID, doc.PeriodKey, doc.NeedsPeriod, doc.Validity.Confidence)
	return nil
}

func runAdvance(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("advance", flag.ExitOnError)
	docID := fs.String("doc", "", "document id (required)")
	to := fs.String("to", "", "target status: draft, reviewed, ready_to_submit, submitted (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *docID == "" || *to == "" {
		return fmt.Errorf("advance: -doc and -to are required")
	}

	doc, err := app.Intake.AdvanceStatus(ctx, *docID, domain.DocumentStatus(*to))
	if err != nil {
		return err
	}
	fmt.Printf("document %s is now %s\n", doc.DocID, doc.Status)
	return nil
}

func runCalendar(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("calendar", flag.ExitOnError)
	typeID := fs.String("type", "", "document type id (required)")
	company := fs.String("company", "", "company key")
	person := fs.String("person", "", "person key")
	lookback := fs.Int("lookback", 6, "number of periods to look back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeID == "" {
		return fmt.Errorf("calendar: -type is required")
	}

	docType, err := app.Catalog.GetType(ctx, *typeID)
	if err != nil {
		return err
	}
	slots, err := app.Periods.Calendar(ctx, *docType, domain.Subject{
		CompanyKey: *company,
		PersonKey:  *person,
	}, time.Now().UTC(), *lookback)
	if err != nil {
		return err
	}
	if slots == nil {
		fmt.Printf("%s is not a periodic type\n", *typeID)
		return nil
	}
	for _, slot := range slots {
		line := fmt.Sprintf("%-8s %-10s", slot.Key, slot.Status)
		if slot.DocID != "" {
			line += "  " + slot.DocID
		}
		fmt.Println(line)
	}
	return nil
}

func runBackfill(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	typeID := fs.String("type", "", "restrict to one document type id")
	dryRun := fs.Bool("dry-run", false, "report what would change without saving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := domain.DocumentFilter{}
	if *typeID != "" {
		filter.TypeIDs = []string{*typeID}
	}
	docs, err := app.Catalog.ListDocuments(ctx, filter)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	changed := 0
	for i := range docs {
		doc := docs[i]
		docType, err := app.Catalog.GetType(ctx, doc.TypeID)
		if err != nil {
			app.Logger.Warn("skip document with unknown type", "doc_id", doc.DocID, "type_id", doc.TypeID)
			continue
		}
		if !app.Periods.Backfill(ctx, &doc, docType.ValidityPolicy) {
			continue
		}
		changed++
		if *dryRun {
			fmt.Printf("would update %s: period=%q needs_period=%v\n", doc.DocID, doc.PeriodKey, doc.NeedsPeriod)
			continue
		}
		if err := app.Catalog.SaveDocument(ctx, &doc); err != nil {
			return fmt.Errorf("save document %s: %w", doc.DocID, err)
		}
		fmt.Printf("updated %s: period=%q needs_period=%v\n", doc.DocID, doc.PeriodKey, doc.NeedsPeriod)
	}
	fmt.Printf("%d of %d documents changed\n", changed, len(docs))
	return nil
}

func runConfirm(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("confirm", flag.ExitOnError)
	platform := fs.String("platform", "", "portal platform (required)")
	label := fs.String("label", "", "requirement label as the portal shows it (required)")
	company := fs.String("company", "", "company key")
	person := fs.String("person", "", "person key")
	period := fs.String("period", "", "period key")
	typeID := fs.String("type", "", "confirmed document type id (required)")
	docID := fs.String("doc", "", "confirmed document id (required)")
	strength := fs.String("strength", string(domain.HintSoft), "hint strength: EXACT or SOFT")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *platform == "" || *label == "" || *typeID == "" || *docID == "" {
		return fmt.Errorf("confirm: -platform, -label, -type and -doc are required")
	}

	req := domain.PendingRequirement{
		Platform:  *platform,
		TypeLabel: *label,
		Subject:   domain.Subject{CompanyKey: *company, PersonKey: *person},
		PeriodKey: *period,
	}
	hint, err := app.Hinter.ConfirmMatch(ctx, req, *typeID, *docID, domain.HintStrength(strings.ToUpper(*strength)))
	if err != nil {
		return err
	}
	fmt.Printf("hint %s recorded (%s -> %s)\n", hint.HintID, hint.Context.NormalizedLabel, hint.TargetDocID)
	return nil
}

func runDisableHint(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("disable-hint", flag.ExitOnError)
	hintID := fs.String("id", "", "hint id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hintID == "" {
		return fmt.Errorf("disable-hint: -id is required")
	}
	if err := app.Hinter.DisableHint(ctx, *hintID); err != nil {
		return err
	}
	fmt.Printf("hint %s disabled\n", *hintID)
	return nil
}

func runHints(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("hints", flag.ExitOnError)
	all := fs.Bool("all", false, "include disabled hints")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hints, err := app.Hints.ListHints(ctx, *all)
	if err != nil {
		return err
	}
	for _, h := range hints {
		state := "enabled"
		if !h.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-5s %-8s %-30s -> %s\n", h.HintID[:12], h.Strength, state, h.Context.NormalizedLabel, h.TargetDocID)
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
