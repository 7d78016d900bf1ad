package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cockpit/internal/logging"
	"cockpit/internal/types"
)

type fetchOptions struct {
	session string
	project string
	asJSON  bool
}

func newFetchCmd(w commandWiring) *cobra.Command {
	opts := fetchOptions{}
	cmd := &cobra.Command{
		Use:       "fetch events|tasks|projects",
		Short:     "Fetch one data domain and print it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(types.DomainEvents), string(types.DomainTasks), string(types.DomainProjects)},
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, ok := types.ParseDomain(args[0])
			if !ok {
				return fmt.Errorf("unknown domain %q: want events, tasks or projects", args[0])
			}
			cfg, _, err := loadConfig(w)
			if err != nil {
				return err
			}
			s, err := buildStack(w, cfg, "", newLogger(cfg, w.stderr))
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			switch domain {
			case types.DomainEvents:
				session := types.Session{ID: strings.TrimSpace(opts.session)}
				if session.ID == "" {
					session = s.resolver.Resolve(ctx)
				}
				s.store.SetSession(session)
			case types.DomainTasks:
				if project := strings.TrimSpace(opts.project); project != "" {
					taskAPI := s.store.TaskAPIConfig()
					taskAPI.DefaultProject = project
					s.store.SetTaskAPIConfig(taskAPI)
				}
			}
			if err := s.fetcher.Refetch(ctx, domain); err != nil {
				return err
			}
			s.logger.Debug("fetch_complete", logging.F("domain", string(domain)))
			return printDomain(w.stdout, s, domain, opts.asJSON)
		},
	}
	cmd.Flags().StringVar(&opts.session, "session", "", "session id for events (default: the persisted session)")
	cmd.Flags().StringVar(&opts.project, "project", "", "project for tasks (default: task_api.default_project)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printDomain(out io.Writer, s *stack, domain types.Domain, asJSON bool) error {
	var items any
	switch domain {
	case types.DomainEvents:
		items = s.store.Events().Snapshot().Items
	case types.DomainTasks:
		items = s.store.Tasks().Snapshot().Items
	default:
		items = s.store.Projects().Snapshot().Items
	}
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(items)
	}

	writer := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	switch items := items.(type) {
	case []types.Event:
		fmt.Fprintln(writer, "ID\tSTART\tTITLE\tLOCATION")
		for _, e := range items {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", e.ID, formatTime(e.Start), e.Title, dash(e.Location))
		}
	case []types.Task:
		fmt.Fprintln(writer, "ID\tSTATUS\tTITLE\tPROJECT\tDUE")
		for _, t := range items {
			status := string(t.Status)
			if status == "" {
				status = string(types.TaskStatusTodo)
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", t.ID, status, t.Title, dash(t.ProjectID), formatTime(t.Due))
		}
	case []types.Project:
		fmt.Fprintln(writer, "ID\tNAME")
		for _, p := range items {
			fmt.Fprintf(writer, "%s\t%s\n", p.ID, p.Name)
		}
	}
	return writer.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
