package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/data/database"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/util"
)

type scanOrphansOptions struct {
	Email  string
	Limit  int
	Delete bool
	Role   string
	DryRun bool
	Yes    bool
}

func runScanOrphans(cmdCtx *commandContext, args []string) error {
	opts, err := parseScanOrphansFlags(args)
	if err != nil {
		return err
	}
	if opts.Delete && !opts.Yes && !opts.DryRun {
		if confirmErr := confirm(fmt.Sprintf("Delete %s rows for every duplicated email?", opts.Role)); confirmErr != nil {
			return confirmErr
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	db, _, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    true,
		WantRedis: false,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, nil); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	report, err := buildOrphanReport(&orphanScanRequest{
		Ctx:     ctx,
		DB:      db,
		Logger:  cmdCtx.Logger,
		Options: &opts,
	})
	if err != nil {
		return err
	}

	if printErr := printOrphanPairs(report, &opts); printErr != nil {
		return printErr
	}

	if !opts.Delete {
		return nil
	}
	return deleteOrphanRows(&orphanDeleteRequest{
		Ctx:     ctx,
		DB:      db,
		Logger:  cmdCtx.Logger,
		Report:  report,
		Options: &opts,
	})
}

func parseScanOrphansFlags(args []string) (scanOrphansOptions, error) {
	fs := flag.NewFlagSet("scan-orphans", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts scanOrphansOptions
	fs.StringVar(&opts.Email, "email", "", "Filter by email substring (case-insensitive)")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum pairs to display (0 for unlimited)")
	fs.BoolVar(&opts.Delete, "delete", false, "Delete the mismatched row on the side given by --role")
	fs.StringVar(&opts.Role, "role", "", "Side to delete when --delete is set (teacher or student)")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return scanOrphansOptions{}, err
	}

	if opts.Limit < 0 {
		return scanOrphansOptions{}, errors.New("--limit must be zero or positive")
	}
	if opts.Delete {
		if opts.Role != string(identity.RoleTeacher) && opts.Role != string(identity.RoleStudent) {
			return scanOrphansOptions{}, errors.New("--delete requires --role teacher or --role student")
		}
	} else if opts.Role != "" {
		return scanOrphansOptions{}, errors.New("--role only applies with --delete")
	}

	return opts, nil
}

type orphanScanRequest struct {
	Ctx     context.Context
	DB      *sql.DB
	Logger  *slog.Logger
	Options *scanOrphansOptions
}

type orphanProfileRow struct {
	IdentityID string
	Email      string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
}

// orphanPair holds the two rows sharing one email. A pair whose identity ids
// differ is orphaned; a pair sharing one identity id is a legitimate
// dual-role account.
type orphanPair struct {
	Email   string
	Teacher orphanProfileRow
	Student orphanProfileRow
}

func (p orphanPair) Mismatched() bool {
	return p.Teacher.IdentityID != p.Student.IdentityID
}

type orphanReport struct {
	Pairs        []orphanPair
	TeacherTotal int64
	StudentTotal int64
}

func buildOrphanReport(req *orphanScanRequest) (orphanReport, error) {
	if req == nil || req.Options == nil {
		return orphanReport{}, nil
	}

	teacherRows, teacherTotal, err := queryProfileTable(req, "teacher_profiles")
	if err != nil {
		return orphanReport{}, err
	}
	studentRows, studentTotal, err := queryProfileTable(req, "student_profiles")
	if err != nil {
		return orphanReport{}, err
	}

	byEmail := make(map[string]orphanProfileRow, len(teacherRows))
	for _, row := range teacherRows {
		byEmail[strings.ToLower(row.Email)] = row
	}

	pairs := make([]orphanPair, 0)
	for _, row := range studentRows {
		teacher, ok := byEmail[strings.ToLower(row.Email)]
		if !ok {
			continue
		}
		pairs = append(pairs, orphanPair{
			Email:   strings.ToLower(row.Email),
			Teacher: teacher,
			Student: row,
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Email < pairs[j].Email })

	return orphanReport{
		Pairs:        pairs,
		TeacherTotal: teacherTotal,
		StudentTotal: studentTotal,
	}, nil
}

func queryProfileTable(req *orphanScanRequest, table string) ([]orphanProfileRow, int64, error) {
	conditions := make([]database.Condition, 0, 1)
	if req.Options.Email != "" {
		conditions = append(conditions, database.WhereCond("email", database.ILike, "%"+req.Options.Email+"%"))
	}

	countQuery, countArgs := database.BuildListQuery(
		database.NewListQueryOptions(table,
			database.WithConditions(conditions...),
			database.WithCountOnly(),
		),
	)
	var total int64
	if err := req.DB.QueryRowContext(req.Ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}

	selectQuery, selectArgs := database.BuildListQuery(
		database.NewListQueryOptions(table,
			database.WithColumns("identity_id", "email", "first_name", "last_name", "created_at"),
			database.WithConditions(conditions...),
			database.WithOrderBy("email", "ASC"),
		),
	)

	req.Logger.Debug("querying profiles", "table", table, "query", selectQuery, "args", selectArgs)

	rows, err := req.DB.QueryContext(req.Ctx, selectQuery, selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && req.Logger != nil {
			req.Logger.Warn("close profile rows failed", "table", table, "error", closeErr)
		}
	}()

	out := make([]orphanProfileRow, 0)
	for rows.Next() {
		var row orphanProfileRow
		if scanErr := rows.Scan(&row.IdentityID, &row.Email, &row.FirstName, &row.LastName, &row.CreatedAt); scanErr != nil {
			return nil, 0, fmt.Errorf("scan %s row: %w", table, scanErr)
		}
		out = append(out, row)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, 0, fmt.Errorf("list %s rows: %w", table, iterErr)
	}

	return out, total, nil
}

func printOrphanPairs(report orphanReport, opts *scanOrphansOptions) error {
	if opts == nil {
		return errors.New("scan options are required")
	}
	if err := writef(
		os.Stdout,
		"\nDuplicated emails across profile tables (%d teacher rows, %d student rows scanned)\n",
		report.TeacherTotal,
		report.StudentTotal,
	); err != nil {
		return fmt.Errorf("write orphan header: %w", err)
	}

	if len(report.Pairs) == 0 {
		if err := writeln(os.Stdout, "  (no duplicated emails found)"); err != nil {
			return fmt.Errorf("write orphan empty message: %w", err)
		}
		return nil
	}

	display := report.Pairs
	if opts.Limit > 0 && len(display) > opts.Limit {
		display = display[:opts.Limit]
	}

	if err := renderOrphanTable(display); err != nil {
		return err
	}

	mismatched := 0
	for _, pair := range report.Pairs {
		if pair.Mismatched() {
			mismatched++
		}
	}
	if err := writef(
		os.Stdout,
		"Total duplicated emails: %d (%d orphaned, %d dual-role)\n",
		len(report.Pairs),
		mismatched,
		len(report.Pairs)-mismatched,
	); err != nil {
		return fmt.Errorf("write orphan total: %w", err)
	}
	if opts.Limit > 0 && len(report.Pairs) > opts.Limit {
		if err := writeln(os.Stdout, "More pairs available; increase --limit to view additional rows."); err != nil {
			return fmt.Errorf("write orphan more-rows message: %w", err)
		}
	}
	return nil
}

func renderOrphanTable(pairs []orphanPair) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "EMAIL\tTEACHER ID\tTEACHER AGE\tSTUDENT ID\tSTUDENT AGE\tSTATUS"); err != nil {
		return fmt.Errorf("write orphan header row: %w", err)
	}

	now := time.Now()
	for _, pair := range pairs {
		status := "dual-role"
		if pair.Mismatched() {
			status = "orphaned"
		}
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			pair.Email,
			pair.Teacher.IdentityID,
			util.FormatAccountAge(now.Sub(pair.Teacher.CreatedAt)),
			pair.Student.IdentityID,
			util.FormatAccountAge(now.Sub(pair.Student.CreatedAt)),
			status,
		); err != nil {
			return fmt.Errorf("write orphan row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush orphan table: %w", err)
	}
	return nil
}

type orphanDeleteRequest struct {
	Ctx     context.Context
	DB      *sql.DB
	Logger  *slog.Logger
	Report  orphanReport
	Options *scanOrphansOptions
}

// deleteOrphanRows removes the chosen side of every mismatched pair.
// Dual-role pairs are left alone; both rows belong to the same account.
func deleteOrphanRows(req *orphanDeleteRequest) error {
	if req == nil || req.Options == nil {
		return errors.New("delete request is required")
	}

	role := identity.Role(req.Options.Role)
	repo := data.NewProfileRepo(req.DB)

	deleted := 0
	for _, pair := range req.Report.Pairs {
		if !pair.Mismatched() {
			continue
		}
		row := pair.Student
		if role == identity.RoleTeacher {
			row = pair.Teacher
		}

		req.Logger.Info("deleting orphaned profile",
			"role", string(role),
			"email", pair.Email,
			"identity_id", row.IdentityID,
			"dry_run", req.Options.DryRun,
		)
		if req.Options.DryRun {
			deleted++
			continue
		}
		if err := repo.DeleteByIdentityID(req.Ctx, role, row.IdentityID); err != nil {
			return fmt.Errorf("delete %s profile %s: %w", role, row.IdentityID, err)
		}
		deleted++
	}

	if req.Options.DryRun {
		return writef(os.Stdout, "Dry-run: would delete %d rows\n", deleted)
	}
	return writef(os.Stdout, "Deleted %d rows\n", deleted)
}
