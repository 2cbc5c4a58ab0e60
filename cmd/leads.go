package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intel/internal/export"
	"github.com/sells-group/lead-intel/internal/model"
	"github.com/sells-group/lead-intel/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Review and act on stored leads",
	Long:  "Commands for listing, inspecting, actioning and exporting scored leads.",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := leadFilterFromFlags(cmd.Flags())
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		filter.Offset, _ = cmd.Flags().GetInt("offset")

		page, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(page.Leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(cmd.OutOrStdout(), page)
		return nil
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show a lead with its actions and notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		return writeJSON(cmd.OutOrStdout(), lead)
	},
}

// -- leads action --

var leadsActionCmd = &cobra.Command{
	Use:   "action <lead-id> <ACCEPT|REJECT|CONVERT>",
	Short: "Record a sales officer decision on a lead",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := actionRequestFromFlags(cmd.Flags(), args[1])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.ApplyAction(ctx, args[0], req)
		if err != nil {
			return eris.Wrap(err, "leads action")
		}

		zap.L().Info("lead action recorded",
			zap.String("lead_id", lead.ID),
			zap.String("action", string(req.Type)),
			zap.String("status", string(lead.Status)),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", truncateID(lead.ID), lead.Status)
		return nil
	},
}

// -- leads note --

var leadsNoteCmd = &cobra.Command{
	Use:   "note <lead-id> <text>",
	Short: "Attach a note to a lead",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		author, _ := cmd.Flags().GetString("author")
		note, err := st.AddNote(ctx, args[0], author, args[1])
		if err != nil {
			return eris.Wrap(err, "leads note")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "note %s added to %s\n", truncateID(note.ID), truncateID(note.LeadID))
		return nil
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matching leads as csv, xlsx or json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := store.ListAll(ctx, st, leadFilterFromFlags(cmd.Flags()))
		if err != nil {
			return eris.Wrap(err, "leads export")
		}

		out := cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrap(err, "leads export: create file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := export.Write(out, format, leads); err != nil {
			return err
		}
		zap.L().Info("leads exported", zap.Int("count", len(leads)), zap.String("format", string(format)))
		return nil
	},
}

// -- leads stats --

var leadsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show lead counts per status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "leads stats")
		}
		formatLeadStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func addLeadFilterFlags(f *pflag.FlagSet) {
	f.String("status", "", "filter by status (AUTO_ASSIGNED, QUALIFIED, REVIEW_REQUIRED, DISCARDED, ACCEPTED, REJECTED, CONVERTED)")
	f.String("product", "", "filter by product code")
	f.Float64("min-confidence", 0, "minimum final confidence")
	f.String("location", "", "filter by location substring")
	f.String("search", "", "search company name and product code")
	f.String("company-id", "", "filter by resolved company ID")
	f.String("sort", store.SortByCreatedAt, "sort by confidence, priority, created_at or company")
	f.Bool("asc", false, "sort ascending")
}

func init() {
	addLeadFilterFlags(leadsListCmd.Flags())
	leadsListCmd.Flags().Int("limit", 50, "max number of leads to display")
	leadsListCmd.Flags().Int("offset", 0, "number of leads to skip")

	leadsActionCmd.Flags().String("actor", "", "sales officer taking the action")
	leadsActionCmd.Flags().String("notes", "", "free-text notes for the action")
	leadsActionCmd.Flags().String("follow-up", "", "next follow-up date (YYYY-MM-DD)")
	leadsActionCmd.Flags().Float64("deal-value", 0, "estimated deal value")

	leadsNoteCmd.Flags().String("author", "", "note author")

	addLeadFilterFlags(leadsExportCmd.Flags())
	leadsExportCmd.Flags().String("format", "csv", "output format: csv, xlsx or json")
	leadsExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	leadsCmd.AddCommand(leadsActionCmd)
	leadsCmd.AddCommand(leadsNoteCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	leadsCmd.AddCommand(leadsStatsCmd)
	rootCmd.AddCommand(leadsCmd)
}

func leadFilterFromFlags(f *pflag.FlagSet) store.LeadFilter {
	status, _ := f.GetString("status")
	product, _ := f.GetString("product")
	minConf, _ := f.GetFloat64("min-confidence")
	location, _ := f.GetString("location")
	search, _ := f.GetString("search")
	companyID, _ := f.GetString("company-id")
	sortBy, _ := f.GetString("sort")
	asc, _ := f.GetBool("asc")

	return store.LeadFilter{
		Status:        model.LeadStatus(status),
		ProductCode:   product,
		CompanyID:     companyID,
		MinConfidence: minConf,
		Location:      location,
		Search:        search,
		SortBy:        sortBy,
		Ascending:     asc,
	}
}

func actionRequestFromFlags(f *pflag.FlagSet, action string) (model.ActionRequest, error) {
	req := model.ActionRequest{Type: model.ActionType(action)}
	switch req.Type {
	case model.ActionAccept, model.ActionReject, model.ActionConvert:
	default:
		return req, eris.Errorf("unknown action %q (want ACCEPT, REJECT or CONVERT)", action)
	}

	req.Actor, _ = f.GetString("actor")
	req.Notes, _ = f.GetString("notes")

	if s, _ := f.GetString("follow-up"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return req, eris.Wrapf(err, "parse follow-up date %q", s)
		}
		req.NextFollowUp = &t
	}
	if f.Changed("deal-value") {
		v, _ := f.GetFloat64("deal-value")
		req.EstimatedDealValue = &v
	}
	return req, nil
}

// formatLeadsList writes a tabular page of leads to w.
func formatLeadsList(out io.Writer, page *store.LeadPage) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tPRODUCT\tCONFIDENCE\tPRIORITY\tSTATUS\tASSIGNED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t----------\t--------\t------\t--------\t-------")

	for _, l := range page.Leads {
		company := l.Company.Name
		if len(company) > 30 {
			company = company[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\t%s\n",
			truncateID(l.ID),
			company,
			l.ProductCode,
			l.Score.FinalConfidence,
			l.Priority.Score,
			l.Status,
			l.AssignedTo,
			l.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\nShowing %d of %d leads\n", len(page.Leads), page.Total)
}

// formatLeadStats writes aggregate lead counts to w.
func formatLeadStats(out io.Writer, s *model.LeadStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total leads:\t%d\n", s.Total)
	for _, status := range model.AllLeadStatuses {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", status, s.ByStatus[status])
	}
	if s.Total > 0 {
		_, _ = fmt.Fprintf(w, "Avg confidence:\t%.2f\n", s.AverageConfidence)
	}
	_ = w.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
