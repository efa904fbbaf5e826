package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mmdatafocus/compensacao_backend/compensacao"
	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/mmdatafocus/compensacao_backend/utils"
	"github.com/spf13/cobra"
)

// confirmPhrase skips the interactive prompt for scripted overrides.
const confirmPhrase = "OVERRIDE"

type session struct {
	ctx       context.Context
	svc       *compensacao.Service
	dateRange *compensacao.DateRange
}

func newSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	settings := config.LoadSettings()
	svc, err := compensacao.NewService(ctx, settings, config.GetLogger())
	if err != nil {
		return nil, err
	}

	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	dr, err := compensacao.ParseDateRange(start, end, settings.Location)
	if err != nil {
		return nil, err
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("COMPENSACAO_OPERATOR_TOKEN")
	}
	if token != "" {
		ctx = utils.SetTokenInContext(ctx, token)
	}
	if u, err := user.Current(); err == nil {
		ctx = utils.SetOperatorNameInContext(ctx, u.Username)
	}
	return &session{ctx: ctx, svc: svc, dateRange: dr}, nil
}

// load fills the record set; remediation commands only act on loaded records.
func (s *session) load() ([]models.ReconciliationRecord, error) {
	return s.svc.Fetcher.Refresh(s.ctx, s.dateRange)
}

func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deposits with errors and orphaned transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.svc.Close()

			records, err := s.load()
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			step, _ := cmd.Flags().GetString("step")
			search, _ := cmd.Flags().GetString("search")
			filtered := compensacao.Filter(records, compensacao.Criteria{
				Status:     status,
				Step:       step,
				SearchTerm: search,
			})

			if len(filtered) == 0 {
				fmt.Println("No records found.")
				return nil
			}
			printRecords(os.Stdout, filtered)
			fmt.Printf("\n%d of %d records\n", len(filtered), len(records))
			return nil
		},
	}
	cmd.Flags().String("status", compensacao.FilterAll, "Filter by status")
	cmd.Flags().String("step", compensacao.FilterAll, "Filter by pipeline step")
	cmd.Flags().String("search", "", "Search id, user, user id or txid")
	return cmd
}

func SummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show totals by status and step",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.svc.Close()

			records, err := s.load()
			if err != nil {
				return err
			}
			summary := compensacao.Summarize(records)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "TOTAL\t%d\t%s\n", summary.Total, summary.TotalAmount.StringFixed(2))
			fmt.Fprintf(w, "ORPHANED\t%d\t\n", summary.Orphaned)
			fmt.Fprintln(w, "\t\t")
			for _, st := range summary.ByStatus {
				fmt.Fprintf(w, "%s\t%d\t%s\n", st.Badge.Label, st.Count, st.Amount.StringFixed(2))
			}
			fmt.Fprintln(w, "\t\t")
			for _, st := range summary.ByStep {
				fmt.Fprintf(w, "%s\t%d\t%s\n", st.Badge.Label, st.Count, st.Amount.StringFixed(2))
			}
			return w.Flush()
		},
	}
}

func ReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess [record-id]",
		Short: "Retry the pipeline for a tracked deposit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.svc.Close()

			if _, err := s.load(); err != nil {
				return err
			}
			n, err := s.svc.Coordinator.Reprocess(s.ctx, args[0])
			printNotification(os.Stdout, n)
			if record, ok := s.svc.Records.Get(args[0]); ok && err == nil {
				printRecords(os.Stdout, []models.ReconciliationRecord{record})
			}
			return err
		},
	}
}

func OverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override [record-id]",
		Short: "Set user, status and step of a tracked deposit",
		Long: `override replaces the user, status and step of a tracked deposit in one
request. The change is shown before it is sent and must be confirmed, either
interactively or with --confirm=OVERRIDE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.svc.Close()

			if _, err := s.load(); err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			status, _ := cmd.Flags().GetString("status")
			step, _ := cmd.Flags().GetString("step")
			phrase, _ := cmd.Flags().GetString("confirm")
			if phrase != "" && phrase != confirmPhrase {
				return fmt.Errorf("--confirm must be %q", confirmPhrase)
			}

			confirmer := promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout(), phrase == confirmPhrase)
			n, err := s.svc.Coordinator.ManualOverride(s.ctx, compensacao.OverrideForm{
				RecordID:  args[0],
				NewUserID: userID,
				NewStatus: status,
				NewStep:   step,
			}, confirmer)
			printNotification(cmd.OutOrStdout(), n)
			return err
		},
	}
	cmd.Flags().String("user", "", "New user id")
	cmd.Flags().String("status", "", "New status")
	cmd.Flags().String("step", "", "New step, by name or upstream code")
	cmd.Flags().String("confirm", "", "Skip the prompt; must be OVERRIDE")
	return cmd
}

func promptConfirmer(in io.Reader, out io.Writer, preconfirmed bool) compensacao.Confirmer {
	return compensacao.ConfirmerFunc(func(ctx context.Context, preview compensacao.OverridePreview) (bool, error) {
		printDiff(out, preview)
		if preconfirmed {
			return true, nil
		}
		fmt.Fprint(out, "Apply this override? [y/N] ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

func printDiff(out io.Writer, preview compensacao.OverridePreview) {
	fmt.Fprintf(out, "Record %s\n", preview.RecordID)
	for _, ch := range preview.Changes {
		if !ch.Changed {
			fmt.Fprintf(out, "  %-7s %s (unchanged)\n", ch.Field, ch.Old)
			continue
		}
		fmt.Fprintf(out, "  %-7s %s -> %s\n",
			ch.Field,
			color.New(color.FgRed).Sprint(ch.Old),
			color.New(color.FgGreen).Sprint(ch.New),
		)
	}
}

func printNotification(out io.Writer, n compensacao.Notification) {
	var c *color.Color
	switch n.Level {
	case compensacao.LevelSuccess:
		c = color.New(color.FgGreen)
	case compensacao.LevelWarning:
		c = color.New(color.FgYellow)
	case compensacao.LevelError:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgCyan)
	}
	label := strings.ToUpper(string(n.Level))
	if n.Kind != "" {
		label += " " + string(n.Kind)
	}
	fmt.Fprintf(out, "%s %s\n", c.Sprint(label), n.Message)
}

func printRecords(out io.Writer, records []models.ReconciliationRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tUSER\tAMOUNT\tSTATUS\tSTEP\tTXID")
	fmt.Fprintln(w, "--\t-------\t----\t------\t------\t----\t----")
	for _, r := range records {
		txID := ""
		if r.TxID != nil {
			txID = *r.TxID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			strings.TrimSpace(r.UserName+" ("+r.UserID+")"),
			r.Amount.StringFixed(2),
			statusColor(r.Status).Sprint(models.StatusBadgeFor(r.Status).Label),
			models.StepBadgeFor(r.Step).Label,
			txID,
		)
	}
	w.Flush()
}

func statusColor(status models.RecordStatus) *color.Color {
	switch models.StatusBadgeFor(status).Severity {
	case models.SeveritySuccess:
		return color.New(color.FgGreen)
	case models.SeverityCritical:
		return color.New(color.FgRed)
	case models.SeverityWarning:
		return color.New(color.FgYellow)
	case models.SeverityInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgHiBlack)
	}
}
