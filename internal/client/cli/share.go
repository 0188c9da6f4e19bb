package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/teamvault/sharecore/internal/client/progress"
	"github.com/teamvault/sharecore/internal/client/share"
)

// shareRequest is the JSON shape of a share request file.
type shareRequest struct {
	ACOs    []acoInput    `json:"acos"`
	Changes []changeInput `json:"changes"`
}

type acoInput struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Resources []resourceInput `json:"resources"`
}

type resourceInput struct {
	ID         string `json:"id"`
	Ciphertext string `json:"ciphertext"`
}

type changeInput struct {
	ACOType       string `json:"aco"`
	ACOForeignKey string `json:"aco_foreign_key"`
	AROForeignKey string `json:"aro_foreign_key"`
	Operation     string `json:"operation"`
}

func (a *App) shareCmd() *cobra.Command {
	var file string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "share",
		Short: "Apply permission changes, re-encrypting secrets for new recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			req, err := loadShareRequest(file)
			if err != nil {
				return err
			}

			batch, err := share.AggregateChangesByACO(req.acos(), req.changes())
			if err != nil {
				return err
			}

			needed, err := a.sim.SimulateBatch(ctx, batch)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d secrets would be re-encrypted\n", len(needed))
				for _, ns := range needed {
					fmt.Fprintf(cmd.OutOrStdout(), "  resource %s -> user %s\n", ns.ResourceID, ns.UserID)
				}
				return nil
			}

			owner, err := a.pass.Acquire(ctx)
			if err != nil {
				return err
			}

			tracker := progress.NewTracker(a.reporter)
			results, err := a.orch.Run(ctx, batch, needed, owner, tracker)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", res.ACOID, res.Err)
					continue
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ %s (%d secrets)\n", res.ACOID, len(res.Secrets))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d objects failed to update", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file describing the ACOs and permission changes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only simulate and report which secrets would be re-encrypted")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadShareRequest(path string) (*shareRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req shareRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing share request: %w", err)
	}
	return &req, nil
}

func (r *shareRequest) acos() []share.ACO {
	out := make([]share.ACO, 0, len(r.ACOs))
	for _, in := range r.ACOs {
		aco := share.ACO{Type: in.Type, ID: in.ID}
		for _, res := range in.Resources {
			aco.Resources = append(aco.Resources, share.Resource{ID: res.ID, Ciphertext: res.Ciphertext})
		}
		out = append(out, aco)
	}
	return out
}

func (r *shareRequest) changes() []share.Change {
	out := make([]share.Change, 0, len(r.Changes))
	for _, in := range r.Changes {
		out = append(out, share.Change{
			ACOType:       in.ACOType,
			ACOForeignKey: in.ACOForeignKey,
			AROForeignKey: in.AROForeignKey,
			Operation:     in.Operation,
		})
	}
	return out
}
