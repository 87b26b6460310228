package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

func newNotesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage a plan's sticky notes",
	}
	cmd.AddCommand(newNotesSetCmd(a), newNotesShowCmd(a))
	return cmd
}

func newNotesSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <plan-id> <file>",
		Short: "Replace a plan's sticky notes from a JSON file",
		Long: "Set replaces every sticky note on the plan with the JSON array in file\n" +
			"(\"-\" for stdin). Notes without an id get one; notes without a created_at\n" +
			"get the current time. Sticky notes are not recorded in the audit trail.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			notes, err := decodeNotes(data)
			if err != nil {
				return err
			}

			repo, err := a.repository()
			if err != nil {
				return err
			}
			ok, err := repo.UpdateStickyNotes(cmd.Context(), args[0], notes, a.user())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("plan %s: %w", args[0], types.ErrNotFound)
			}
			return a.output(cmd, notes, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Plan %s now has %d sticky notes\n", args[0], len(notes))
				return err
			})
		},
	}
}

// decodeNotes parses a JSON array of sticky notes, filling in missing IDs
// and creation times.
func decodeNotes(data []byte) ([]types.StickyNote, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var notes []types.StickyNote
	if err := dec.Decode(&notes); err != nil {
		return nil, fmt.Errorf("%w: sticky notes: %v", types.ErrInvalidData, err)
	}
	if notes == nil {
		notes = []types.StickyNote{}
	}
	now := timeNow()
	for i := range notes {
		if notes[i].ID == "" {
			notes[i].ID = uuid.NewString()
		}
		if notes[i].CreatedAt.IsZero() {
			notes[i].CreatedAt = now
		}
	}
	return notes, nil
}

func newNotesShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan's sticky notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.getPlan(cmd, args[0])
			if err != nil {
				return err
			}
			notes := p.StickyNotes
			if notes == nil {
				notes = []types.StickyNote{}
			}
			return a.output(cmd, notes, func(w io.Writer) error {
				rows := make([][]string, 0, len(notes))
				for _, n := range notes {
					rows = append(rows, []string{n.ID, n.Author, n.Color, truncate(n.Text, 80)})
				}
				return table(w, []string{"ID", "AUTHOR", "COLOR", "TEXT"}, rows)
			})
		},
	}
}
