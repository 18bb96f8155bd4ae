package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calbers/twinchat/internal/storage"
)

// --- leads ---

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Review captured visitor contacts",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured contacts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/admin/leads?limit=%d", limit))
		if err != nil {
			return err
		}

		var result struct {
			Leads []storage.Lead `json:"leads"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Leads) == 0 {
			fmt.Println("No leads captured yet.")
			return nil
		}

		for _, l := range result.Leads {
			name := l.Name
			if name == "" {
				name = "(no name)"
			}
			fmt.Printf("%s  %s  %s  %s\n",
				paint(ansiCyan, l.ID[:8]),
				l.CreatedAt.Format("2006-01-02 15:04"),
				paint(ansiBold, l.Email),
				name,
			)
			if l.Notes != "" && l.Notes != "not provided" {
				fmt.Printf("          %s\n", l.Notes)
			}
		}
		return nil
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a captured contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/admin/leads/"+args[0])
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Deleted lead %s", args[0])
		return nil
	},
}

func init() {
	leadsListCmd.Flags().Int("limit", 50, "maximum number of leads to list")
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsDeleteCmd)
}

// --- questions ---

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Review questions the twin could not answer",
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unanswered questions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/admin/questions?limit=%d", limit))
		if err != nil {
			return err
		}

		var result struct {
			Questions []storage.Question `json:"questions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Questions) == 0 {
			fmt.Println("No unanswered questions. The twin is keeping up.")
			return nil
		}

		for _, q := range result.Questions {
			question := q.Question
			if len(question) > 100 {
				question = question[:100] + "..."
			}
			fmt.Printf("%s  %s  %s\n",
				paint(ansiCyan, q.ID[:8]),
				q.CreatedAt.Format("2006-01-02 15:04"),
				question,
			)
		}
		return nil
	},
}

var questionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an unanswered question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/admin/questions/"+args[0])
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Deleted question %s", args[0])
		return nil
	},
}

func init() {
	questionsListCmd.Flags().Int("limit", 50, "maximum number of questions to list")
	questionsCmd.AddCommand(questionsListCmd)
	questionsCmd.AddCommand(questionsDeleteCmd)
}
