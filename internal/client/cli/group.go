package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teamvault/sharecore/internal/client/group"
	"github.com/teamvault/sharecore/internal/client/progress"
	"github.com/teamvault/sharecore/internal/client/share"
)

// groupUpdateRequest is the JSON shape of a group update file.
type groupUpdateRequest struct {
	Existing  groupInput      `json:"existing"`
	Updated   groupInput      `json:"updated"`
	Resources []resourceInput `json:"resources"`
}

type groupInput struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Members []memberInput `json:"members"`
}

type memberInput struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

func (a *App) groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}
	cmd.AddCommand(a.groupUpdateCmd())
	return cmd
}

func (a *App) groupUpdateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a group's name and membership",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var req groupUpdateRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parsing group update request: %w", err)
			}

			var resources []share.Resource
			for _, res := range req.Resources {
				resources = append(resources, share.Resource{ID: res.ID, Ciphertext: res.Ciphertext})
			}

			tracker := progress.NewTracker(a.reporter)
			applied, err := a.groups.Update(cmd.Context(),
				req.Existing.toGroup(), req.Updated.toGroup(), resources, tracker)
			if err != nil {
				if applied > 0 {
					return fmt.Errorf("stopped after %d applied operations: %w", applied, err)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Group updated (%d operations)\n", applied)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the existing and updated group")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (g groupInput) toGroup() group.Group {
	out := group.Group{ID: g.ID, Name: g.Name}
	for _, m := range g.Members {
		out.Members = append(out.Members, group.Member{UserID: m.UserID, IsAdmin: m.IsAdmin})
	}
	return out
}
