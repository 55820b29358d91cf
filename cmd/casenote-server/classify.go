package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/casenote/casenote/internal/domain/casenote"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a JSON file of case-note snapshots for one viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			viewerID, _ := cmd.Flags().GetInt64("viewer")
			rawRole, _ := cmd.Flags().GetString("role")
			asJSON, _ := cmd.Flags().GetBool("json")

			role, ok := casenote.ParseRole(rawRole)
			if !ok {
				return fmt.Errorf("unknown role %q", rawRole)
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runClassify(in, cmd.OutOrStdout(), casenote.Viewer{ID: viewerID, Role: role}, asJSON)
		},
	}
	cmd.Flags().String("file", "-", "JSON file with records; - reads stdin")
	cmd.Flags().Int64("viewer", 0, "Viewer user ID")
	cmd.Flags().String("role", string(casenote.RoleCA), "Viewer role (CA, MR_STAFF, ADMIN)")
	cmd.Flags().Bool("json", false, "Print views as JSON instead of a table")
	return cmd
}

// readRecords accepts either a bare array or a {"records": [...]} object.
func readRecords(in io.Reader) ([]*casenote.Request, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var records []*casenote.Request
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &records)
	} else {
		var wrapped struct {
			Records []*casenote.Request `json:"records"`
		}
		err = json.Unmarshal(data, &wrapped)
		records = wrapped.Records
	}
	if err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("records[%d] is null", i)
		}
	}
	return records, nil
}

func runClassify(in io.Reader, out io.Writer, viewer casenote.Viewer, asJSON bool) error {
	records, err := readRecords(in)
	if err != nil {
		return err
	}
	views := casenote.ClassifyAll(records, viewer)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tSTATUS\tINVOLVEMENT\tBUCKET\tPATIENT")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			v.Request.ID, v.Request.RequestNumber, v.DisplayStatus.Text,
			v.Involvement, v.ReturnBucket, v.PatientName)
	}
	return tw.Flush()
}
