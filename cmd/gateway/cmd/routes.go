package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartrestaurant/gateway/internal/gateway"
	"github.com/smartrestaurant/gateway/internal/services/iam"
)

var explainAuthorities []string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect the route and authorization tables",
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the authorization rules and routes in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadTable(cfg.Gateway)
		if err != nil {
			return fmt.Errorf("load route table: %w", err)
		}
		return printTable(cmd.OutOrStdout(), table)
	},
}

var routesExplainCmd = &cobra.Command{
	Use:   "explain METHOD PATH",
	Short: "Show the authorization decision and rewrite for a request",
	Long: `Evaluates the authorization table and route table for METHOD and PATH as the
request would be handled at runtime, without forwarding it. Without --authority the
request is evaluated as anonymous.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline(cfg, nil)
		if err != nil {
			return err
		}

		var principal *iam.Principal
		if len(explainAuthorities) > 0 {
			principal = iam.NewPrincipal(iam.Identity{Subject: "cli"}, explainAuthorities, time.Time{})
		}

		explanation := p.dispatcher.Explain(strings.ToUpper(args[0]), args[1], principal)
		printExplanation(cmd.OutOrStdout(), explanation)
		return nil
	},
}

func printTable(out io.Writer, table *gateway.Table) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "AUTHZ\tMETHOD\tPATH\tACCESS")
	for i, rule := range table.Authz {
		method := rule.Method
		if method == "" {
			method = "*"
		}
		access := string(rule.Access)
		if rule.Access == gateway.AccessAuthority {
			access = rule.Authority
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, method, rule.Pattern, access)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "ROUTE\tMETHOD\tPATH\tPOOL\tREWRITE")
	for _, route := range table.Routes.Rules() {
		method := route.Method
		if method == "" {
			method = "*"
		}
		rewrite := route.Rewrite()
		if rewrite == "" {
			rewrite = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", route.ID, method, route.Pattern, route.Pool, rewrite)
	}
	return w.Flush()
}

func printExplanation(out io.Writer, e gateway.Explanation) {
	fmt.Fprintf(out, "request:   %s %s\n", e.Method, e.Path)
	if e.Err != nil {
		fmt.Fprintf(out, "rejected:  %v (400)\n", e.Err)
		return
	}

	rule := "implicit (no rule matched)"
	if e.Decision.RuleIndex != gateway.ImplicitRuleIndex {
		rule = fmt.Sprintf("#%d %s", e.Decision.RuleIndex, e.Decision.Rule)
	}
	fmt.Fprintf(out, "authz:     %s via %s\n", e.Decision.Outcome, rule)
	if e.Decision.Reason != "" {
		fmt.Fprintf(out, "reason:    %s\n", e.Decision.Reason)
	}

	if e.Route == nil {
		fmt.Fprintln(out, "route:     none (404)")
		return
	}
	fmt.Fprintf(out, "route:     %s -> pool %s\n", e.Route.ID, e.Route.Pool)
	fmt.Fprintf(out, "rewrite:   %s\n", e.RewrittenPath)
	if len(e.Instances) > 0 {
		fmt.Fprintf(out, "instances: %s\n", strings.Join(e.Instances, ", "))
	}
}

func init() {
	routesExplainCmd.Flags().StringSliceVar(&explainAuthorities, "authority", nil, "Authority held by the caller (repeatable)")
	routesCmd.AddCommand(routesListCmd)
	routesCmd.AddCommand(routesExplainCmd)
	rootCmd.AddCommand(routesCmd)
}
