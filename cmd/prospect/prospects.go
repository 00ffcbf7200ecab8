package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/prospect/internal/repository"
	"github.com/kalambet/prospect/internal/storage"
)

// --- company ---

func (a *app) companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies",
	}

	var c storage.Company
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a company",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Name = strings.Join(args, " ")
			id, err := a.repo.AddCompany(c)
			if err != nil {
				return err
			}
			printSuccess("Added company %d", id)
			return nil
		},
	}
	addCmd.Flags().StringVar(&c.City, "city", "", "city")
	addCmd.Flags().StringVar(&c.State, "state", "", "state or region")
	addCmd.Flags().StringVar(&c.Notes, "notes", "", "free-form notes")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List companies by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, err := a.repo.Companies()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(companies) == 0 {
				fmt.Fprintln(w, "No companies.")
				return nil
			}
			for _, c := range companies {
				line := fmt.Sprintf("%s  %s", colorize(styleStep, fmt.Sprintf("#%d", c.ID)), c.Name)
				if place := joinNonEmpty(", ", c.City, c.State); place != "" {
					line += "  " + colorize(styleMuted, place)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a company; its contacts and interactions are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.repo.DeleteCompany(id); err != nil {
				return err
			}
			printSuccess("Deleted company %d", id)
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, deleteCmd)
	return cmd
}

// --- contact ---

func (a *app) contactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage contacts",
	}

	var c storage.Contact
	var companyName string
	var companyID int64
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact",
		Long: `Add a contact.

Examples:
  prospect contact add --first Ada --last Lovelace --company "Analytical Engines"
  prospect contact add --first Grace --last Hopper --company-id 3 --email grace@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.LastName) == "" {
				return fmt.Errorf("one of --first or --last is required")
			}
			switch {
			case companyID > 0:
				c.CompanyID = &companyID
			case companyName != "":
				id, err := a.repo.AddCompanyIfNeeded(companyName)
				if err != nil {
					return err
				}
				c.CompanyID = id
			}
			id, err := a.repo.AddContact(c)
			if err != nil {
				return err
			}
			printSuccess("Added contact %d", id)
			return nil
		},
	}
	addCmd.Flags().StringVar(&c.FirstName, "first", "", "first name")
	addCmd.Flags().StringVar(&c.LastName, "last", "", "last name")
	addCmd.Flags().StringVar(&c.Phone, "phone", "", "phone number")
	addCmd.Flags().StringVar(&c.Email, "email", "", "email address")
	addCmd.Flags().StringVar(&c.Title, "title", "", "job title")
	addCmd.Flags().StringVar(&c.Tags, "tags", "", "comma-separated tags")
	addCmd.Flags().StringVar(&companyName, "company", "", "create a company with this name and link it")
	addCmd.Flags().Int64Var(&companyID, "company-id", 0, "link an existing company")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts by last name",
		RunE: func(cmd *cobra.Command, args []string) error {
			contacts, err := a.repo.Contacts()
			if err != nil {
				return err
			}
			names, err := a.companyNames()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(contacts) == 0 {
				fmt.Fprintln(w, "No contacts.")
				return nil
			}
			for _, c := range contacts {
				line := fmt.Sprintf("%s  %s", colorize(styleStep, fmt.Sprintf("#%d", c.ID)), c.FullName())
				if c.CompanyID != nil {
					line += " (" + names[*c.CompanyID] + ")"
				}
				if extra := joinNonEmpty("  ", c.Title, c.Email, c.Phone); extra != "" {
					line += "  " + colorize(styleMuted, extra)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact and all of their interactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.repo.DeleteContact(cmd.Context(), id); err != nil {
				return err
			}
			printSuccess("Deleted contact %d", id)
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, deleteCmd)
	return cmd
}

func (a *app) companyNames() (map[int64]string, error) {
	companies, err := a.repo.Companies()
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(companies))
	for _, c := range companies {
		names[c.ID] = c.Name
	}
	return names, nil
}

// --- interaction ---

func (a *app) interactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interaction",
		Aliases: []string{"interactions"},
		Short:   "Log and review prospecting interactions",
	}
	cmd.AddCommand(
		a.interactionLogCmd(),
		a.interactionListCmd(),
		a.interactionShowCmd(),
		a.interactionDueCmd(),
		a.interactionSearchCmd(),
		a.interactionFollowUpCmd(),
		a.interactionDeleteCmd(),
		a.interactionExportCmd(),
	)
	return cmd
}

func (a *app) interactionLogCmd() *cobra.Command {
	var (
		contactID                   int64
		first, last, company        string
		what, notes, when, where    string
		why, followUp, followUpNote string
		lat, lng                    float64
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log an interaction",
		Long: `Log an interaction with an existing contact, or create the contact on the fly.

Examples:
  prospect interaction log --contact-id 4 --type call --notes "left voicemail" --follow-up "2024-03-12 09:00"
  prospect interaction log --first Ada --last Lovelace --company "Analytical Engines" --type visit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			i := storage.Interaction{
				WhatType:     what,
				WhatNotes:    notes,
				WhereText:    where,
				WhySummary:   why,
				FollowUpNote: followUpNote,
			}
			var err error
			if i.WhenAt, err = a.parseTime(when); err != nil {
				return err
			}
			if followUp != "" {
				t, err := a.parseTime(followUp)
				if err != nil {
					return err
				}
				i.NextFollowUpAt = &t
			}
			if cmd.Flags().Changed("lat") {
				i.WhereLat = &lat
			}
			if cmd.Flags().Changed("lng") {
				i.WhereLng = &lng
			}

			var id int64
			if contactID > 0 {
				c, found, err := a.repo.Contact(contactID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("contact %d: %w", contactID, storage.ErrNotFound)
				}
				i.ContactID = c.ID
				i.CompanyID = c.CompanyID
				id, err = a.repo.LogInteraction(cmd.Context(), i)
				if id == 0 {
					return err
				}
				return reportLogged(id, err)
			}

			if strings.TrimSpace(first) == "" && strings.TrimSpace(last) == "" {
				return fmt.Errorf("one of --contact-id, --first or --last is required")
			}
			id, err = a.repo.QuickLog(cmd.Context(), repository.QuickEntry{
				FirstName:   first,
				LastName:    last,
				CompanyName: company,
				Interaction: i,
			})
			if id == 0 {
				return err
			}
			return reportLogged(id, err)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&contactID, "contact-id", 0, "existing contact")
	f.StringVar(&first, "first", "", "first name of a new contact")
	f.StringVar(&last, "last", "", "last name of a new contact")
	f.StringVar(&company, "company", "", "company of a new contact")
	f.StringVar(&what, "type", "note", "kind of interaction (call, visit, email, ...)")
	f.StringVar(&notes, "notes", "", "what happened")
	f.StringVar(&when, "when", "now", "when it happened (YYYY-MM-DD HH:MM)")
	f.StringVar(&where, "where", "", "place description")
	f.Float64Var(&lat, "lat", 0, "latitude")
	f.Float64Var(&lng, "lng", 0, "longitude")
	f.StringVar(&why, "why", "", "purpose or outcome summary")
	f.StringVar(&followUp, "follow-up", "", "next follow-up time (YYYY-MM-DD HH:MM)")
	f.StringVar(&followUpNote, "follow-up-note", "", "what to do at the follow-up")
	return cmd
}

// reportLogged prints the new id. A reminder failure after a successful
// insert is still returned.
func reportLogged(id int64, err error) error {
	printSuccess("Logged interaction %d", id)
	return err
}

func (a *app) interactionListCmd() *cobra.Command {
	var contactID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List interactions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var views []storage.InteractionView
			var err error
			if contactID > 0 {
				var list []storage.Interaction
				if list, err = a.repo.InteractionsForContact(contactID); err != nil {
					return err
				}
				views, err = a.viewsOf(list)
			} else {
				views, err = a.repo.Interactions()
			}
			if err != nil {
				return err
			}
			a.printInteractions(cmd.OutOrStdout(), views)
			return nil
		},
	}
	cmd.Flags().Int64Var(&contactID, "contact-id", 0, "only this contact's interactions")
	return cmd
}

func (a *app) interactionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v, found, err := a.repo.Interaction(id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("interaction %d: %w", id, storage.ErrNotFound)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, colorize(styleBold, fmt.Sprintf("#%d %s", v.ID, v.WhatType)))
			printField(w, "Contact", v.ContactName())
			printField(w, "Company", v.CompanyName)
			printField(w, "When", a.formatTime(v.WhenAt))
			printField(w, "Notes", v.WhatNotes)
			printField(w, "Where", v.WhereText)
			if v.WhereLat != nil && v.WhereLng != nil {
				printField(w, "Coordinates", fmt.Sprintf("%.6f, %.6f", *v.WhereLat, *v.WhereLng))
			}
			printField(w, "Why", v.WhySummary)
			if v.NextFollowUpAt != nil {
				printField(w, "Follow-up", a.formatTime(*v.NextFollowUpAt))
			}
			printField(w, "Follow-up note", v.FollowUpNote)
			return nil
		},
	}
}

func (a *app) interactionDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List interactions whose follow-up is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := a.repo.Due()
			if err != nil {
				return err
			}
			views, err := a.viewsOf(due)
			if err != nil {
				return err
			}
			a.printInteractions(cmd.OutOrStdout(), views)
			return nil
		},
	}
}

func (a *app) interactionSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search interactions by contact, company, notes or summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := a.repo.Search(strings.Join(args, " "))
			if err != nil {
				return err
			}
			views, err := a.viewsOf(found)
			if err != nil {
				return err
			}
			a.printInteractions(cmd.OutOrStdout(), views)
			return nil
		},
	}
}

func (a *app) interactionFollowUpCmd() *cobra.Command {
	var at, note string
	var clear bool
	cmd := &cobra.Command{
		Use:   "follow-up <id>",
		Short: "Set or clear the follow-up of an interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !clear && at == "" {
				return fmt.Errorf("one of --at or --clear is required")
			}
			var when *time.Time
			if !clear {
				t, err := a.parseTime(at)
				if err != nil {
					return err
				}
				when = &t
			}
			if err := a.repo.SetFollowUp(cmd.Context(), id, when, note); err != nil {
				return err
			}
			if clear {
				printSuccess("Cleared follow-up of interaction %d", id)
			} else {
				printSuccess("Follow-up of interaction %d set to %s", id, a.formatTime(*when))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "follow-up time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&note, "note", "", "what to do at the follow-up")
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the follow-up")
	return cmd
}

func (a *app) interactionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.repo.DeleteInteraction(cmd.Context(), id); err != nil {
				return err
			}
			printSuccess("Deleted interaction %d", id)
			return nil
		},
	}
}

func (a *app) interactionExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the interaction log as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := a.repo.Interactions()
			if err != nil {
				return err
			}
			list := make([]storage.Interaction, len(views))
			for n, v := range views {
				list[n] = v.Interaction
			}
			w, done, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			if err := a.repo.ExportInteractions(w, list); err != nil {
				done()
				return err
			}
			if err := done(); err != nil {
				return err
			}
			if output != "" {
				printSuccess("Exported %d interactions to %s", len(list), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "output file path (default: stdout)")
	return cmd
}

// viewsOf attaches contact and company names. Interactions deleted in the
// meantime are left out.
func (a *app) viewsOf(list []storage.Interaction) ([]storage.InteractionView, error) {
	views := make([]storage.InteractionView, 0, len(list))
	for _, i := range list {
		v, found, err := a.repo.Interaction(i.ID)
		if err != nil {
			return nil, err
		}
		if found {
			views = append(views, v)
		}
	}
	return views, nil
}

func (a *app) printInteractions(w io.Writer, views []storage.InteractionView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No interactions.")
		return
	}
	for _, v := range views {
		who := v.ContactName()
		if v.CompanyName != "" {
			who += " (" + v.CompanyName + ")"
		}
		line := fmt.Sprintf("%s  %s  %s  %s",
			colorize(styleStep, fmt.Sprintf("#%d", v.ID)),
			a.formatTime(v.WhenAt),
			colorize(styleBold, v.WhatType),
			who,
		)
		if v.WhatNotes != "" {
			line += "  " + truncate(v.WhatNotes, 60)
		}
		if v.NextFollowUpAt != nil {
			line += "  " + colorize(styleWarning, "follow up "+a.formatTime(*v.NextFollowUpAt))
		}
		fmt.Fprintln(w, line)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
